package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/plantspeak/internal/speech"
)

type Speaker interface {
	Speak(ctx context.Context, req speech.Request) (*speech.Result, error)
}

type SpeechHandler struct {
	svc Speaker
}

func NewSpeechHandler(svc Speaker) *SpeechHandler {
	return &SpeechHandler{svc: svc}
}

// Speak converts text to audio and answers with a link to the stored file.
func (h *SpeechHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req speech.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Speak(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
