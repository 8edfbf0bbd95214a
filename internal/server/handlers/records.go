package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListMappings returns cross-system mappings.
func (h *Handlers) ListMappings(w http.ResponseWriter, r *http.Request) {
	ms, err := h.store.ListMappings(r.Context(), limitParam(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list mappings", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ms)
}

// GetMapping returns the mapping for one ProductBoard id.
func (h *Handlers) GetMapping(w http.ResponseWriter, r *http.Request) {
	psID := chi.URLParam(r, "psID")
	m, err := h.store.GetMapping(r.Context(), psID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get mapping", err)
		return
	}
	if m == nil {
		h.writeError(w, http.StatusNotFound, "mapping not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// ListSyncLogs returns webhook audit rows, newest first.
func (h *Handlers) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.ListSyncLogs(r.Context(), limitParam(r))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list sync logs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// GetSyncLog returns one webhook audit row.
func (h *Handlers) GetSyncLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.store.GetSyncLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get sync log", err)
		return
	}
	if log == nil {
		h.writeError(w, http.StatusNotFound, "sync log not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, log)
}
