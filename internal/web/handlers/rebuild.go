package handlers

import (
	"net/http"

	"github.com/media-curator/media-curator/internal/store"
)

// RebuildHandler rebuilds the vector indices from the relational store.
// This is the repair path for lost or drifted index files.
type RebuildHandler struct {
	store *store.DualStore
}

func NewRebuildHandler(ds *store.DualStore) *RebuildHandler {
	return &RebuildHandler{store: ds}
}

// Rebuild handles POST /rebuild.
func (h *RebuildHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Rebuild(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"media_vectors": h.store.Media.Count(),
		"face_vectors":  h.store.Faces.Count(),
	})
}
