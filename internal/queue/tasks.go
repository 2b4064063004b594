package queue

const (
	TypeAudioExpire = "audio:expire"
	TypeAudioSweep  = "audio:sweep"
)

// AudioExpirePayload names one stored audio file to delete.
type AudioExpirePayload struct {
	Name string `json:"name"`
}

// AudioSweepPayload removes local files older than MaxAgeSeconds.
type AudioSweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}
