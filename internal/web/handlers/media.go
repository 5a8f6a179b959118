package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/media-curator/media-curator/internal/store"
)

// MediaHandler serves the media listing, detail and removal endpoints.
type MediaHandler struct {
	store *store.DualStore
}

func NewMediaHandler(ds *store.DualStore) *MediaHandler {
	return &MediaHandler{store: ds}
}

// List handles GET /media with optional type, tag, character, series,
// style, limit and offset query parameters.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MediaFilter{
		Type:      store.MediaType(q.Get("type")),
		Tag:       q.Get("tag"),
		Character: q.Get("character"),
		Series:    q.Get("series"),
		Style:     q.Get("style"),
		Limit:     queryInt(r, "limit", 100),
		Offset:    queryInt(r, "offset", 0),
	}

	records, err := h.store.Meta.ListMedia(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []store.MediaRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"media": records,
		"count": len(records),
	})
}

// Get handles GET /media/{id}.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	record, err := h.store.Meta.GetMedia(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	faces, err := h.store.Meta.ListFaces(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"media": record,
		"faces": faces,
	})
}

// Delete handles DELETE /media/{id}. The relational row goes away
// immediately; the vector entries are tombstoned.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "media not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
