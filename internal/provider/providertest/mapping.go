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

// TestMappingUpsert verifies one row per ProductBoard id and nil on miss.
func TestMappingUpsert(t *testing.T, store provider.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	got, err := store.GetMapping(ctx, "ct-pb-missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.UpsertMapping(ctx, types.Mapping{
		PSID:              "ct-pb-1",
		LastKnownPSStatus: "Candidate",
		LastSyncedAt:      now,
		SyncStatus:        types.MappingTracking,
	}))
	require.NoError(t, store.UpsertMapping(ctx, types.Mapping{
		PSID:              "ct-pb-1",
		WTSID:             4242,
		WTSURL:            "https://dev.azure.com/acme/Shop/_workitems/edit/4242",
		LastKnownPSStatus: "With Engineering",
		LastSyncedAt:      now.Add(time.Minute),
		SyncStatus:        types.MappingSynced,
	}))

	got, err = store.GetMapping(ctx, "ct-pb-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4242, got.WTSID)
	assert.Equal(t, "With Engineering", got.LastKnownPSStatus)
	assert.Equal(t, types.MappingSynced, got.SyncStatus)
	assert.Empty(t, got.SyncError)
	assert.WithinDuration(t, now.Add(time.Minute), got.LastSyncedAt, time.Microsecond)
	assert.True(t, got.HasRemote())

	require.NoError(t, store.UpsertMapping(ctx, types.Mapping{
		PSID:       "ct-pb-2",
		SyncStatus: types.MappingError,
		SyncError:  "boom",
	}))
	all, err := store.ListMappings(ctx, 0)
	require.NoError(t, err)
	count := 0
	for _, m := range all {
		if m.PSID == "ct-pb-1" || m.PSID == "ct-pb-2" {
			count++
		}
	}
	assert.Equal(t, 2, count, "upsert must not duplicate rows")

	limited, err := store.ListMappings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
