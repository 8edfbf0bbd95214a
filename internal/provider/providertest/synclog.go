package providertest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// TestSyncLogLifecycle verifies create, in-place update and not-found behavior.
func TestSyncLogLifecycle(t *testing.T, store provider.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	payload := json.RawMessage(`{"data":{"eventType":"feature.updated","id":"F1"}}`)

	log := types.SyncLog{
		ID:        ulid.Make().String(),
		EventType: "feature.updated",
		Status:    types.LogReceived,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateSyncLog(ctx, log))

	log.ItemID = "F1"
	log.ItemType = "feature"
	log.Status = types.LogADOCreated
	log.Details = "created work item 77"
	log.ADOID = 77
	log.Payload = nil
	log.UpdatedAt = now.Add(time.Second)
	require.NoError(t, store.UpdateSyncLog(ctx, log))

	got, err := store.GetSyncLog(ctx, log.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.LogADOCreated, got.Status)
	assert.Equal(t, "F1", got.ItemID)
	assert.Equal(t, "feature", got.ItemType)
	assert.Equal(t, 77, got.ADOID)
	assert.Equal(t, "created work item 77", got.Details)
	assert.JSONEq(t, string(payload), string(got.Payload), "payload survives updates that omit it")
	assert.WithinDuration(t, now, got.CreatedAt, time.Microsecond)
	assert.WithinDuration(t, now.Add(time.Second), got.UpdatedAt, time.Microsecond)

	missing, err := store.GetSyncLog(ctx, "ct-no-such-log")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = store.UpdateSyncLog(ctx, types.SyncLog{ID: "ct-no-such-log", Status: types.LogIgnored})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

// TestSyncLogListNewestFirst verifies ordering and limit.
func TestSyncLogListNewestFirst(t *testing.T, store provider.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)

	var ids []string
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		id := ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String()
		ids = append(ids, id)
		require.NoError(t, store.CreateSyncLog(ctx, types.SyncLog{
			ID: id, EventType: "feature.updated", Status: types.LogReceived, CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	logs, err := store.ListSyncLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, ids[2], logs[0].ID)
	assert.Equal(t, ids[1], logs[1].ID)
}

// TestPing verifies the store is reachable.
func TestPing(t *testing.T, store provider.Store) {
	require.NoError(t, store.Ping(context.Background()))
}
