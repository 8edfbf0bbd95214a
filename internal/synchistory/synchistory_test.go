package synchistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func newTracker(store *testutil.MockStore, now time.Time) *Tracker {
	tr := New(store, nil)
	tr.now = func() time.Time { return now }
	return tr
}

func TestCutoff_NoHistoryIsUnbounded(t *testing.T) {
	tr := newTracker(testutil.NewMockStore(), time.Now())
	assert.True(t, tr.Cutoff(context.Background(), types.EntityEpics, false).IsZero())
}

func TestRecordSync_SuccessAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	store := testutil.NewMockStore()
	tr := newTracker(store, now)

	require.NoError(t, tr.RecordSync(ctx, types.EntityFeatures, 12, types.SyncSuccess, nil))

	last, ok, err := tr.LastSyncTime(ctx, types.EntityFeatures)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, now, last)
	assert.Equal(t, now.Add(-DefaultOverlap), tr.Cutoff(ctx, types.EntityFeatures, false))
}

func TestCutoff_ForceFullSync(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(testutil.NewMockStore(), time.Now())
	require.NoError(t, tr.RecordSync(ctx, types.EntityStories, 1, types.SyncSuccess, nil))

	assert.True(t, tr.Cutoff(ctx, types.EntityStories, true).IsZero())
}

func TestRecordSync_FailureKeepsPreviousWatermark(t *testing.T) {
	ctx := context.Background()
	first := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	store := testutil.NewMockStore()
	tr := newTracker(store, first)
	require.NoError(t, tr.RecordSync(ctx, types.EntityEpics, 3, types.SyncSuccess, nil))

	tr.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, tr.RecordSync(ctx, types.EntityEpics, 0, types.SyncFailed, errors.New("ado: 503")))

	rec, err := store.GetSyncHistory(ctx, types.EntityEpics)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.SyncFailed, rec.Status)
	assert.Equal(t, "ado: 503", rec.ErrorMessage)
	assert.Equal(t, 0, rec.ItemsSynced)
	assert.Equal(t, first, rec.LastSyncTime, "one row per entity type, watermark unchanged")

	hist, err := tr.History(ctx)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRecordSync_FirstFailureHasNoWatermark(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(testutil.NewMockStore(), time.Now())
	require.NoError(t, tr.RecordSync(ctx, types.EntityTeams, 0, types.SyncFailed, errors.New("boom")))

	_, ok, err := tr.LastSyncTime(ctx, types.EntityTeams)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()
	tr := newTracker(store, time.Now())

	store.FailReads(true)
	_, _, err := tr.LastSyncTime(ctx, types.EntityEpics)
	var se *types.StoreError
	assert.ErrorAs(t, err, &se)
	assert.True(t, tr.Cutoff(ctx, types.EntityEpics, false).IsZero())
	store.FailReads(false)

	store.FailWrites(true)
	err = tr.RecordSync(ctx, types.EntityEpics, 1, types.SyncSuccess, nil)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}
