package handlers

import "net/http"

// Health reports store reachability and whether ADO writes are live.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check: store unreachable", "error", err)
		status = "degraded"
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"liveWrites": h.webhook.LiveWrites(),
	})
}
