package providertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// TestSyncHistoryOverwrite verifies the watermark is one row per entity type.
func TestSyncHistoryOverwrite(t *testing.T, store provider.Store) {
	ctx := context.Background()
	et := types.EntityType("ct_entities")
	now := time.Now().UTC().Truncate(time.Microsecond)

	got, err := store.GetSyncHistory(ctx, et)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.PutSyncHistory(ctx, types.SyncHistoryRecord{
		EntityType: et, LastSyncTime: now, ItemsSynced: 10, Status: types.SyncSuccess,
	}))
	require.NoError(t, store.PutSyncHistory(ctx, types.SyncHistoryRecord{
		EntityType: et, LastSyncTime: now.Add(time.Hour), ItemsSynced: 0,
		Status: types.SyncFailed, ErrorMessage: "ado unavailable",
	}))

	got, err = store.GetSyncHistory(ctx, et)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.SyncFailed, got.Status)
	assert.Equal(t, 0, got.ItemsSynced)
	assert.Equal(t, "ado unavailable", got.ErrorMessage)
	assert.WithinDuration(t, now.Add(time.Hour), got.LastSyncTime, time.Microsecond)

	all, err := store.ListSyncHistory(ctx)
	require.NoError(t, err)
	count := 0
	for _, rec := range all {
		if rec.EntityType == et {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
