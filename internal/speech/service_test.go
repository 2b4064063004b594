package speech

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/plantspeak/internal/audio"
	"github.com/nikhilbhutani/plantspeak/internal/tts"
)

type fakeProvider struct {
	got tts.SynthesisRequest
	err error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	p.got = req
	if p.err != nil {
		return nil, p.err
	}
	return &tts.SynthesisResult{Audio: []byte("ID3-audio"), ContentType: "audio/mpeg", Extension: ".mp3"}, nil
}

type fakeExpirer struct {
	name string
	ttl  time.Duration
}

func (e *fakeExpirer) EnqueueAudioExpire(name string, ttl time.Duration) error {
	e.name, e.ttl = name, ttl
	return nil
}

func TestSpeakStoresAudio(t *testing.T) {
	store, err := audio.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	provider := &fakeProvider{}
	expirer := &fakeExpirer{}

	svc := NewService(provider, store, expirer, 100, time.Hour)
	res, err := svc.Speak(context.Background(), Request{Text: "  Quercus robur  ", Voice: "nova", Speed: 1.25})
	require.NoError(t, err)

	assert.Equal(t, "Quercus robur", provider.got.Input)
	assert.Equal(t, "nova", provider.got.Voice)
	assert.InDelta(t, 1.25, provider.got.Speed, 1e-9)

	assert.True(t, audio.ValidName(res.File))
	assert.True(t, strings.HasSuffix(res.File, ".mp3"))
	assert.Equal(t, "http://localhost:8080/audio/"+res.File, res.AudioURL)
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.Equal(t, len("ID3-audio"), res.Bytes)

	assert.Equal(t, res.File, expirer.name)
	assert.Equal(t, time.Hour, expirer.ttl)
}

func TestSpeakValidation(t *testing.T) {
	store, err := audio.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	svc := NewService(&fakeProvider{}, store, nil, 5, 0)

	_, err = svc.Speak(context.Background(), Request{Text: "   "})
	assert.ErrorIs(t, err, ErrMissingText)

	_, err = svc.Speak(context.Background(), Request{Text: "too long"})
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = svc.Speak(context.Background(), Request{Text: "héllo"})
	assert.NoError(t, err, "limit counts characters, not bytes")

	_, err = svc.Speak(context.Background(), Request{Text: "ok", Speed: 9})
	assert.ErrorIs(t, err, ErrInvalidSpeed)
}

func TestSpeakWrapsProviderErrors(t *testing.T) {
	store, err := audio.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	svc := NewService(&fakeProvider{err: errors.New("quota exceeded")}, store, nil, 0, 0)

	_, err = svc.Speak(context.Background(), Request{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesize: quota exceeded")
}
