package handlers

import (
	"net/http"

	"github.com/media-curator/media-curator/internal/store"
)

// StatsHandler serves library statistics.
type StatsHandler struct {
	store *store.DualStore
}

func NewStatsHandler(ds *store.DualStore) *StatsHandler {
	return &StatsHandler{store: ds}
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
