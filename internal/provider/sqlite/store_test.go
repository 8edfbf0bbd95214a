package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider/providertest"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "cache.db"))
	providertest.RunAll(t, s)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "cache.db"))
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, s.UpsertMapping(ctx, types.Mapping{
		PSID: "ps-reopen", WTSID: 7, LastSyncedAt: now, SyncStatus: types.MappingSynced,
	}))
	require.NoError(t, s.Close())

	s2 := newTestStore(t, path)
	got, err := s2.GetMapping(ctx, "ps-reopen")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 7, got.WTSID)
	assert.True(t, now.Equal(got.LastSyncedAt), "nanosecond timestamps survive a round trip")
}

func TestParentWithoutCachedRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "cache.db"))

	require.NoError(t, s.UpsertWorkItems(ctx, []types.WorkItem{{ID: 10, Type: types.ADOTypeFeature, Title: "orphan"}}))
	// parent_id carries no foreign key; the cache layer decides when to link.
	require.NoError(t, s.SetParentIDs(ctx, map[int]int{10: 999}))

	items, err := s.GetWorkItems(ctx, []int{10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ParentID)
	assert.Equal(t, 999, *items[0].ParentID)
}

func TestGetWorkItems_ChunksLargeIDLists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, filepath.Join(t.TempDir(), "cache.db"))

	items := make([]types.WorkItem, 0, 1200)
	ids := make([]int, 0, 1200)
	for i := 1; i <= 1200; i++ {
		items = append(items, types.WorkItem{ID: i, Type: types.ADOTypeStory, Title: "story"})
		ids = append(ids, i)
	}
	require.NoError(t, s.UpsertWorkItems(ctx, items))

	got, err := s.GetWorkItems(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, got, 1200)

	existing, err := s.ExistingWorkItemIDs(ctx, append(ids, 5000))
	require.NoError(t, err)
	assert.Len(t, existing, 1200)
	assert.False(t, existing[5000])
}
