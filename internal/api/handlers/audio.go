package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/plantspeak/internal/audio"
)

type AudioHandler struct {
	store *audio.LocalStore
}

func NewAudioHandler(store *audio.LocalStore) *AudioHandler {
	return &AudioHandler{store: store}
}

// Serve streams a stored audio file. http.ServeContent handles Range and
// conditional requests.
func (h *AudioHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := h.store.Path(name)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		writeErrorMessage(w, http.StatusNotFound, "audio not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", audio.ContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
