package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/plantspeak/internal/history"
)

type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type HistoryHandler struct {
	svc HistoryLister // nil without a database
}

func NewHistoryHandler(svc HistoryLister) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "history requires a database")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.Recent(r.Context(), history.ClampLimit(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"identifications": entries})
}
