// Package handlers implements HTTP request handlers for the pbtoado API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/cache"
	"github.com/AlieInmar1/pbtoado-sub002/internal/hierarchy"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/internal/webhook"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Webhook is the inbound event controller.
type Webhook interface {
	Authorize(presented string) error
	Handle(ctx context.Context, body []byte) (webhook.Result, error)
	LiveWrites() bool
}

// BulkSync runs bulk syncs and serves cached work items.
type BulkSync interface {
	Run(ctx context.Context, req bulksync.Request) (bulksync.Result, error)
	Hierarchy(ctx context.Context) ([]hierarchy.Node, error)
	WorkItems(ctx context.Context, ids []int, refresh bool) cache.FetchResult[[]types.WorkItem]
}

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	webhook  Webhook
	bulk     BulkSync
	exporter Exporter
	store    provider.Store
	logger   *slog.Logger
}

// New creates a new Handlers instance.
func New(wh Webhook, bulk BulkSync, store provider.Store) *Handlers {
	return &Handlers{
		webhook: wh,
		bulk:    bulk,
		store:   store,
		logger:  slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response failed", "error", err)
	}
}

// limitParam reads ?limit=N, falling back to the store default.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return provider.DefaultListLimit
	}
	return n
}
