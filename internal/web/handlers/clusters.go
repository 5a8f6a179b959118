package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/media-curator/media-curator/internal/cluster"
	"github.com/media-curator/media-curator/internal/store"
)

// ClustersHandler runs face clustering and serves cluster membership.
type ClustersHandler struct {
	store     *store.DualStore
	clusterer *cluster.Clusterer
}

func NewClustersHandler(ds *store.DualStore, clusterer *cluster.Clusterer) *ClustersHandler {
	return &ClustersHandler{store: ds, clusterer: clusterer}
}

// Run handles POST /clusters/run. Labels from any earlier run are
// replaced wholesale.
func (h *ClustersHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.clusterer.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Faces handles GET /clusters/{id}/faces.
func (h *ClustersHandler) Faces(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	faces, err := h.store.Meta.FacesByCluster(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if faces == nil {
		faces = []store.FaceObservation{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"cluster": id,
		"faces":   faces,
		"count":   len(faces),
	})
}

// Media handles GET /clusters/{id}/media: every media item in which the
// cluster's person appears.
func (h *ClustersHandler) Media(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	faces, err := h.store.Meta.FacesByCluster(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	seen := make(map[int64]bool)
	media := []store.MediaRecord{}
	for _, f := range faces {
		if seen[f.MediaID] {
			continue
		}
		seen[f.MediaID] = true

		record, err := h.store.Meta.GetMedia(r.Context(), f.MediaID)
		if err != nil {
			continue // face outlived its media row
		}
		media = append(media, *record)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"cluster": id,
		"media":   media,
		"count":   len(media),
	})
}
