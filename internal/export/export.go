// Package export writes Azure DevOps work items to ProductBoard, the reverse of
// the webhook path, and links both sides: the feature id is stored on the work
// item's cross-reference field and in the mapping table.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/lock"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// ErrWorkItemNotFound is returned when ADO has no work item with the id.
var ErrWorkItemNotFound = errors.New("work item not found")

// ADO is the Azure DevOps surface an export needs.
type ADO interface {
	GetWorkItemsRaw(ctx context.Context, ids []int) ([]mapping.ADOWorkItem, error)
	UpdateWorkItem(ctx context.Context, id int, ops []mapping.PatchOp) (types.WorkItem, error)
	WebURL(id int) string
}

// ProductBoard is the feature write surface an export needs.
type ProductBoard interface {
	WriteItem(ctx context.Context, m *mapping.Mapper, item types.Item) (mapping.Feature, error)
}

// Result describes one export.
type Result struct {
	ADOID          int    `json:"adoId"`
	ProductBoardID string `json:"productboardId"`
	Created        bool   `json:"created"`
	Status         string `json:"status,omitempty"`
}

// Exporter pushes work items to ProductBoard.
type Exporter struct {
	ado      ADO
	pb       ProductBoard
	mapper   *mapping.Mapper
	store    provider.Store
	locker   lock.Locker
	lockTTL  time.Duration
	lockWait time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLocker serializes exports with webhook events for the same feature.
func WithLocker(l lock.Locker, ttl, wait time.Duration) Option {
	return func(e *Exporter) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
		if wait > 0 {
			e.lockWait = wait
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Exporter. Without WithLocker an in-process lock is used.
func New(ado ADO, pb ProductBoard, m *mapping.Mapper, store provider.Store, opts ...Option) *Exporter {
	e := &Exporter{
		ado:      ado,
		pb:       pb,
		mapper:   m,
		store:    store,
		locker:   lock.NewMemory(),
		lockTTL:  lock.DefaultTTL,
		lockWait: lock.DefaultWait,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Export writes work item adoID to ProductBoard. A work item without a
// ProductBoard id creates a feature, which is then linked back on the work
// item; otherwise the linked feature is updated. The mapping is saved last and
// records the status written to ProductBoard as the cached status.
func (e *Exporter) Export(ctx context.Context, adoID int) (Result, error) {
	raws, err := e.ado.GetWorkItemsRaw(ctx, []int{adoID})
	if err != nil {
		return Result{}, err
	}
	if len(raws) == 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrWorkItemNotFound, adoID)
	}
	item := e.mapper.ExtractItem(raws[0])
	res := Result{ADOID: adoID, ProductBoardID: item.ProductBoardID, Created: item.ProductBoardID == ""}

	if !res.Created {
		key := lock.ItemKey(item.ProductBoardID)
		if err := lock.AcquireWait(ctx, e.locker, key, e.lockTTL, e.lockWait); err != nil {
			return res, err
		}
		defer func() {
			if err := e.locker.Release(context.WithoutCancel(ctx), key); err != nil {
				e.logger.Warn("lock release failed", "ps_id", item.ProductBoardID, "error", err)
			}
		}()
	}

	feat, err := e.pb.WriteItem(ctx, e.mapper, item)
	if err != nil {
		metrics.ExportErrors.Add(1)
		return res, err
	}
	res.ProductBoardID = feat.ID

	if res.Created {
		ops := []mapping.PatchOp{{Op: "add", Path: "/fields/" + e.mapper.Fields().ProductBoardID, Value: feat.ID}}
		if _, err := e.ado.UpdateWorkItem(ctx, adoID, ops); err != nil {
			metrics.ExportErrors.Add(1)
			return res, fmt.Errorf("linking feature %s: %w", feat.ID, err)
		}
	}

	existing, err := e.store.GetMapping(ctx, feat.ID)
	if err != nil {
		return res, &types.StoreError{Op: "get mapping", Err: err}
	}
	m := types.Mapping{PSID: feat.ID}
	if existing != nil {
		m = *existing
	}
	m.WTSID = adoID
	m.WTSURL = e.ado.WebURL(adoID)
	m.SyncStatus = types.MappingSynced
	m.SyncError = ""
	m.LastSyncedAt = e.now()
	if feat.Status != nil && feat.Status.Name != "" {
		m.LastKnownPSStatus = feat.Status.Name
	}
	res.Status = m.LastKnownPSStatus
	if err := e.store.UpsertMapping(context.WithoutCancel(ctx), m); err != nil {
		return res, &types.StoreError{Op: "upsert mapping", Err: err}
	}

	metrics.Exports.Add(1)
	e.logger.Info("work item exported", "ado_id", adoID, "ps_id", feat.ID, "created", res.Created)
	return res, nil
}
