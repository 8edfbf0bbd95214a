// Package synchistory tracks per-entity-type sync watermarks used to compute
// incremental cutoffs for the bulk sync path.
package synchistory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// DefaultOverlap is subtracted from a watermark so that items changed while
// the previous sync was running are picked up again.
const DefaultOverlap = 2 * time.Minute

// Tracker reads and writes sync history records.
type Tracker struct {
	store   provider.Store
	overlap time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Tracker. A nil logger uses slog.Default().
func New(store provider.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:   store,
		overlap: DefaultOverlap,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LastSyncTime returns the time of the last successful sync of an entity type.
// ok is false when the type has never synced successfully.
func (t *Tracker) LastSyncTime(ctx context.Context, entityType types.EntityType) (time.Time, bool, error) {
	rec, err := t.store.GetSyncHistory(ctx, entityType)
	if err != nil {
		return time.Time{}, false, &types.StoreError{Op: "get sync history", Err: err}
	}
	if rec == nil || rec.LastSyncTime.IsZero() {
		return time.Time{}, false, nil
	}
	return rec.LastSyncTime, true, nil
}

// Cutoff returns the changedSince bound for the next query of an entity type.
// It is zero, meaning unbounded, when force is set, when no successful sync is
// recorded, or when the history cannot be read.
func (t *Tracker) Cutoff(ctx context.Context, entityType types.EntityType, force bool) time.Time {
	if force {
		return time.Time{}
	}
	last, ok, err := t.LastSyncTime(ctx, entityType)
	if err != nil {
		t.logger.Warn("sync history unavailable, running full sync", "entity_type", entityType, "error", err)
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	return last.Add(-t.overlap)
}

// RecordSync overwrites the record of an entity type with the outcome of an
// attempt. Only a successful attempt advances last_sync_time; failed and
// partial attempts keep the previous watermark so the next run retries the
// same window.
func (t *Tracker) RecordSync(ctx context.Context, entityType types.EntityType, itemCount int, status types.SyncStatus, syncErr error) error {
	rec := types.SyncHistoryRecord{
		EntityType:  entityType,
		ItemsSynced: itemCount,
		Status:      status,
	}
	if syncErr != nil {
		rec.ErrorMessage = syncErr.Error()
	}

	if status == types.SyncSuccess {
		rec.LastSyncTime = t.now()
	} else {
		prev, _, err := t.LastSyncTime(ctx, entityType)
		if err != nil {
			return err
		}
		rec.LastSyncTime = prev
	}

	if err := t.store.PutSyncHistory(ctx, rec); err != nil {
		return &types.StoreError{Op: fmt.Sprintf("put sync history %s", entityType), Err: err}
	}
	t.logger.Debug("sync recorded", "entity_type", entityType, "status", status, "items", itemCount)
	return nil
}

// History returns every record, ordered by entity type.
func (t *Tracker) History(ctx context.Context) ([]types.SyncHistoryRecord, error) {
	recs, err := t.store.ListSyncHistory(ctx)
	if err != nil {
		return nil, &types.StoreError{Op: "list sync history", Err: err}
	}
	return recs, nil
}
