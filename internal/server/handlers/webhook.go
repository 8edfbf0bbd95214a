package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// LivenessMessage is returned for a plain GET on the webhook endpoint.
const LivenessMessage = "pbtoado webhook endpoint is live"

// ProductBoardWebhook accepts signed event deliveries.
func (h *Handlers) ProductBoardWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhook.Authorize(PresentedSecret(r.Header.Get("Authorization"))); err != nil {
		metrics.WebhookRejected.Add(1)
		h.logger.Warn("webhook rejected", "error", err, "remote", r.RemoteAddr)
		h.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		h.writeError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	res, err := h.webhook.Handle(r.Context(), body)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, HandleErrorMessage(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// HandleErrorMessage is the client-facing message for an event the controller
// could not accept. Both causes answer 503 so ProductBoard redelivers.
func HandleErrorMessage(err error) string {
	var storeErr *types.StoreError
	if errors.As(err, &storeErr) {
		return "audit store unavailable"
	}
	return "request cancelled"
}

// WebhookHandshake echoes validationToken for subscription setup, and
// otherwise answers with a liveness string.
func (h *Handlers) WebhookHandshake(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if token := r.URL.Query().Get("validationToken"); token != "" {
		_, _ = io.WriteString(w, token)
		return
	}
	_, _ = io.WriteString(w, LivenessMessage)
}

// WebhookPreflight answers CORS preflight requests.
func (h *Handlers) WebhookPreflight(w http.ResponseWriter, _ *http.Request) {
	SetCORSHeaders(w.Header())
	w.WriteHeader(http.StatusNoContent)
}

// SetCORSHeaders applies the permissive CORS policy of the webhook endpoint.
func SetCORSHeaders(hdr http.Header) {
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
	hdr.Set("Access-Control-Max-Age", "86400")
}

// PresentedSecret extracts the shared secret from an Authorization header
// value, with or without a Bearer scheme.
func PresentedSecret(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return header
}
