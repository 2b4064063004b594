package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAISynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "Bellis perennis", body["input"])
		assert.Equal(t, "alloy", body["voice"])
		assert.Equal(t, "mp3", body["response_format"])

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	assert.Equal(t, "openai-tts", p.Name())

	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "Bellis perennis"})
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3", string(res.Audio))
	assert.Equal(t, "audio/mpeg", res.ContentType)
	assert.Equal(t, ".mp3", res.Extension)
}

func TestOpenAISynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "bad", BaseURL: srv.URL + "/v1"})
	_, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "hello", Voice: "nova"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tts request")
}

func writeFakePiper(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "piper")
	// Echo the argument list, then stdin, so the test can inspect both.
	script := "#!/bin/sh\necho \"$@\"\ncat\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestLocalSynthesize(t *testing.T) {
	bin := writeFakePiper(t)

	p := NewLocal(LocalConfig{PiperBinPath: bin, ModelPath: "en_US-lessac-medium.onnx"})
	assert.Equal(t, "local-piper", p.Name())

	res, err := p.Synthesize(context.Background(), SynthesisRequest{Input: "common daisy", Speed: 2})
	require.NoError(t, err)
	assert.Equal(t, "--model en_US-lessac-medium.onnx --output_file - --length_scale 0.500\ncommon daisy", string(res.Audio))
	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, ".wav", res.Extension)
}

func TestLocalRequiresModel(t *testing.T) {
	_, err := NewLocal(LocalConfig{}).Synthesize(context.Background(), SynthesisRequest{Input: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTS_LOCAL_PIPER_MODEL")
}

func TestLocalReportsFailures(t *testing.T) {
	_, err := NewLocal(LocalConfig{PiperBinPath: filepath.Join(t.TempDir(), "missing"), ModelPath: "m.onnx"}).
		Synthesize(context.Background(), SynthesisRequest{Input: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "piper failed")
}
