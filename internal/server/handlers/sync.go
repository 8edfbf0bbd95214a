package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
)

// RunSync runs one bulk sync. An empty body means an incremental sync with
// the configured credentials.
func (h *Handlers) RunSync(w http.ResponseWriter, r *http.Request) {
	var req bulksync.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	res, err := h.bulk.Run(r.Context(), req)
	switch {
	case errors.Is(err, bulksync.ErrRunning):
		h.writeError(w, http.StatusConflict, "a bulk sync is already running", nil)
		return
	case err != nil:
		h.writeError(w, http.StatusBadRequest, res.Message, err)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, res)
}

// GetHierarchy returns the epic/feature/story tree built from cached items.
func (h *Handlers) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	tree, err := h.bulk.Hierarchy(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to build hierarchy", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tree)
}

// ListSyncHistory returns the per-entity-type watermarks.
func (h *Handlers) ListSyncHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ListSyncHistory(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list sync history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, recs)
}
