package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/media-curator/media-curator/internal/ingest"
)

// ScanHandler starts ingestion runs and serves their progress.
type ScanHandler struct {
	pipeline    *ingest.Pipeline
	libraryRoot string
}

func NewScanHandler(pipeline *ingest.Pipeline, libraryRoot string) *ScanHandler {
	return &ScanHandler{pipeline: pipeline, libraryRoot: libraryRoot}
}

type scanRequest struct {
	Root string `json:"root,omitempty"`
}

// Start handles POST /scan. The run proceeds in the background; clients
// poll Status for progress. A second start while one is active gets 409.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	root := req.Root
	if root == "" {
		root = h.libraryRoot
	}
	if root == "" {
		respondError(w, http.StatusBadRequest, "no library root configured")
		return
	}

	// detach from the request context, the scan outlives it
	updates, err := h.pipeline.Scan(context.Background(), root)
	if err != nil {
		if errors.Is(err, ingest.ErrScanActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// drain in the background so the pipeline never blocks on a channel
	// nobody reads
	go func() {
		for range updates {
		}
	}()

	snapshot, _ := h.pipeline.Guard().Status()
	respondJSON(w, http.StatusAccepted, map[string]any{
		"run_id": snapshot.RunID,
		"root":   root,
	})
}

// Status handles GET /scan/status.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot, active := h.pipeline.Guard().Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"active":   active,
		"snapshot": snapshot,
	})
}
