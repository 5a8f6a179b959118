package handlers

import (
	"net/http"

	"github.com/media-curator/media-curator/internal/dedupe"
)

// DuplicatesHandler runs duplicate detection on demand.
type DuplicatesHandler struct {
	detector *dedupe.Detector
}

func NewDuplicatesHandler(detector *dedupe.Detector) *DuplicatesHandler {
	return &DuplicatesHandler{detector: detector}
}

// Scan handles POST /duplicates/scan. The run is synchronous; pairs
// come back ranked by similarity.
func (h *DuplicatesHandler) Scan(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.detector.FindDuplicates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pairs == nil {
		pairs = []dedupe.Pair{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"pairs": pairs,
		"count": len(pairs),
	})
}
