package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/plantspeak/internal/audio"
	"github.com/nikhilbhutani/plantspeak/internal/tts"
)

var (
	ErrMissingText  = errors.New("missing text")
	ErrTextTooLong  = errors.New("text is too long")
	ErrInvalidSpeed = errors.New("speed must be between 0.25 and 4.0")
)

// Expirer schedules deletion of a stored file.
type Expirer interface {
	EnqueueAudioExpire(name string, ttl time.Duration) error
}

type Request struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

type Result struct {
	AudioURL    string `json:"audio_url"`
	File        string `json:"file"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
}

type Service struct {
	provider tts.Provider
	store    audio.Store
	expirer  Expirer // optional
	maxChars int
	ttl      time.Duration
}

func NewService(provider tts.Provider, store audio.Store, expirer Expirer, maxChars int, ttl time.Duration) *Service {
	if maxChars <= 0 {
		maxChars = 4096
	}
	return &Service{
		provider: provider,
		store:    store,
		expirer:  expirer,
		maxChars: maxChars,
		ttl:      ttl,
	}
}

// Speak synthesizes req.Text, stores the audio and returns a link to it.
func (s *Service) Speak(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrMissingText
	}
	if n := utf8.RuneCountInString(text); n > s.maxChars {
		return nil, fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, n, s.maxChars)
	}
	if req.Speed != 0 && (req.Speed < 0.25 || req.Speed > 4.0) {
		return nil, ErrInvalidSpeed
	}

	start := time.Now()
	out, err := s.provider.Synthesize(ctx, tts.SynthesisRequest{
		Input: text,
		Voice: req.Voice,
		Speed: req.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	name := audio.NewName(out.Extension)
	url, err := s.store.Save(ctx, name, out.Audio, out.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	slog.Info("speech generated",
		"provider", s.provider.Name(),
		"store", s.store.Name(),
		"file", name,
		"bytes", len(out.Audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if s.expirer != nil && s.ttl > 0 {
		if err := s.expirer.EnqueueAudioExpire(name, s.ttl); err != nil {
			slog.Warn("schedule audio expiry failed", "file", name, "error", err)
		}
	}

	return &Result{
		AudioURL:    url,
		File:        name,
		ContentType: out.ContentType,
		Bytes:       len(out.Audio),
	}, nil
}
