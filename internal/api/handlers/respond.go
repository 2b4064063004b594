package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/plantspeak/internal/identify"
	"github.com/nikhilbhutani/plantspeak/internal/imagefetch"
	"github.com/nikhilbhutani/plantspeak/internal/plantnet"
	"github.com/nikhilbhutani/plantspeak/internal/speech"
)

var badRequestErrors = []error{
	identify.ErrMissingAPIKey,
	identify.ErrMissingImageURL,
	plantnet.ErrInvalidOrgan,
	imagefetch.ErrInvalidURL,
	imagefetch.ErrNotImage,
	imagefetch.ErrUnsupportedImage,
	imagefetch.ErrImageTooLarge,
	imagefetch.ErrEmptyImage,
	speech.ErrMissingText,
	speech.ErrTextTooLong,
	speech.ErrInvalidSpeed,
}

// maxBodyBytes caps JSON request bodies. It leaves room for the longest
// allowed TTS text with every character escaped.
const maxBodyBytes = 1 << 20

// decodeJSON reads a capped JSON body into dst and writes the 4xx response
// itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors to HTTP responses. Pl@ntNet answers are
// passed through with their upstream status and body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *plantnet.APIError
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		ct := apiErr.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(apiErr.StatusCode)
		w.Write(apiErr.Body)
		return
	}
	if apiErr != nil {
		writeErrorMessage(w, apiErr.StatusCode, err.Error())
		return
	}

	status := statusFor(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeErrorMessage(w, status, err.Error())
}

func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	var statusErr *imagefetch.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
