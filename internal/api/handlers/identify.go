package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/plantspeak/internal/identify"
)

type Identifier interface {
	Identify(ctx context.Context, req identify.Request) (*identify.Answer, error)
}

type IdentifyHandler struct {
	svc Identifier
}

func NewIdentifyHandler(svc Identifier) *IdentifyHandler {
	return &IdentifyHandler{svc: svc}
}

// Identify forwards the image to Pl@ntNet and returns its JSON untouched.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identify.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	ans, err := h.svc.Identify(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cache := "MISS"
	if ans.Cached {
		cache = "HIT"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Plant-Organ", ans.Organ)
	w.Header().Set("X-Cache", cache)
	w.WriteHeader(http.StatusOK)
	w.Write(ans.Result.Raw)
}
