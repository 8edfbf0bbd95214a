package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlieInmar1/pbtoado-sub002/internal/cache"
	"github.com/AlieInmar1/pbtoado-sub002/internal/export"
	"github.com/AlieInmar1/pbtoado-sub002/internal/lock"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// maxWorkItemIDs bounds one ?ids= list.
const maxWorkItemIDs = 200

// Exporter pushes a work item to ProductBoard.
type Exporter interface {
	Export(ctx context.Context, adoID int) (export.Result, error)
}

// SetExporter enables the export endpoint.
func (h *Handlers) SetExporter(e Exporter) { h.exporter = e }

// WorkItemsResponse is the body of GET /api/work-items.
type WorkItemsResponse struct {
	Items    []types.WorkItem `json:"items"`
	Source   cache.Source     `json:"source"`
	Degraded bool             `json:"degraded"`
}

// ListWorkItems reads work items by id through the local cache. ?refresh=true
// bypasses the cache.
func (h *Handlers) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	res := h.bulk.WorkItems(r.Context(), ids, refresh)
	if res.Source == cache.SourceNone {
		h.writeError(w, http.StatusBadGateway, "work items unavailable", res.Err)
		return
	}
	if res.Degraded() {
		h.logger.Warn("serving cached work items", "error", res.Err)
	}
	items := res.Value
	if items == nil {
		items = []types.WorkItem{}
	}
	h.writeJSON(w, http.StatusOK, WorkItemsResponse{Items: items, Source: res.Source, Degraded: res.Degraded()})
}

// ExportWorkItem writes one work item to ProductBoard.
func (h *Handlers) ExportWorkItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid work item id", nil)
		return
	}

	res, err := h.exporter.Export(r.Context(), id)
	var se *types.StoreError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, res)
	case errors.Is(err, export.ErrWorkItemNotFound):
		h.writeError(w, http.StatusNotFound, "work item not found", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		h.writeError(w, http.StatusConflict, "feature is being synced", err)
	case errors.As(err, &se):
		h.writeError(w, http.StatusServiceUnavailable, "mapping store unavailable", err)
	default:
		h.writeError(w, http.StatusBadGateway, "export failed", err)
	}
}

func parseIDs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("ids is required")
	}
	parts := strings.Split(s, ",")
	if len(parts) > maxWorkItemIDs {
		return nil, errors.New("too many ids")
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, errors.New("ids must be positive integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
