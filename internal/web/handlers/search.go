package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/metrics"
	"github.com/media-curator/media-curator/internal/store"
)

// SearchHandler serves semantic similarity search.
type SearchHandler struct {
	store    *store.DualStore
	provider features.Provider
}

func NewSearchHandler(ds *store.DualStore, provider features.Provider) *SearchHandler {
	return &SearchHandler{store: ds, provider: provider}
}

type searchRequest struct {
	Text      string    `json:"text,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// Search handles POST /search. The query is either free text, embedded
// through the feature provider, or a raw embedding supplied by the
// caller.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	query := req.Embedding
	if len(query) == 0 {
		if req.Text == "" {
			respondError(w, http.StatusBadRequest, "either text or embedding is required")
			return
		}
		embedded, err := h.provider.TextEmbedding(r.Context(), req.Text)
		if err != nil {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		query = embedded
		metrics.SearchRequests.WithLabelValues("text").Inc()
	} else {
		metrics.SearchRequests.WithLabelValues("media").Inc()
	}

	results, err := h.store.SearchSimilar(r.Context(), query, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
