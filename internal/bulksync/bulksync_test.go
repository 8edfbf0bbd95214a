package bulksync

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/ado"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

const longAgo = "2020-01-01T00:00:00Z"

type fixture struct {
	fake   *testutil.FakeADO
	store  *testutil.MockStore
	mapper *mapping.Mapper
	svc    *Service
}

func newFixture(t *testing.T, entityTypes ...types.EntityType) *fixture {
	t.Helper()
	f := &fixture{
		fake:   testutil.NewFakeADO(t),
		store:  testutil.NewMockStore(),
		mapper: mapping.MustNew(mapping.Config{}),
	}
	f.fake.SetReferenceData(
		[]types.WorkItemType{{Name: "Epic"}, {Name: "Feature"}, {Name: "User Story"}},
		nil,
		[]types.Team{{ID: "t1", Name: "Web"}, {ID: "t2", Name: "Payments"}},
	)
	cfg := f.fake.Config()
	f.svc = New(cfg, ado.New(cfg, f.mapper), func(c types.ADOConfig) Remote {
		return ado.New(c, f.mapper)
	}, f.store, entityTypes, nil)
	return f
}

// add stores a work item last changed long ago so incremental queries skip it.
func (f *fixture) add(id int, typ string, parent int, fields map[string]any) {
	wi := mapping.ADOWorkItem{ID: id, Fields: map[string]any{
		mapping.FieldWorkItemType: typ,
		mapping.FieldTitle:        typ + " " + strconv.Itoa(id),
		mapping.FieldChangedDate:  longAgo,
	}}
	for k, v := range fields {
		wi.Fields[k] = v
	}
	if parent > 0 {
		wi.Relations = []mapping.ADORelation{{
			Rel: mapping.RelParent,
			URL: f.fake.Server.URL + "/" + f.fake.Org + "/_apis/wit/workItems/" + strconv.Itoa(parent),
		}}
	}
	f.fake.AddWorkItem(wi)
}

func (f *fixture) seedHierarchy() {
	f.add(1, types.ADOTypeEpic, 0, nil)
	f.add(2, types.ADOTypeFeature, 1, nil)
	f.add(3, types.ADOTypeStory, 2, nil)
	f.add(4, types.ADOTypeStory, 2, nil)
}

func TestRun_FullSync(t *testing.T) {
	f := newFixture(t)
	f.seedHierarchy()
	ctx := context.Background()

	res, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Empty(t, res.Degraded)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 3, res.Counts[types.EntityWorkItemTypes])
	assert.Equal(t, 1, res.Counts[types.EntityAreaPaths])
	assert.Equal(t, 2, res.Counts[types.EntityTeams])
	assert.Equal(t, 1, res.Counts[types.EntityEpics])
	assert.Equal(t, 1, res.Counts[types.EntityFeatures])
	assert.Equal(t, 2, res.Counts[types.EntityStories])
	assert.Equal(t, HierarchySummary{Epics: 1, Features: 1, Stories: 2, LinkedFeatures: 1, LinkedStories: 2}, res.Hierarchy)
	assert.Contains(t, res.Message, "stories=2")

	for _, et := range []types.EntityType{
		types.EntityWorkItemTypes, types.EntityAreaPaths, types.EntityTeams,
		types.EntityEpics, types.EntityFeatures, types.EntityStories,
	} {
		rec, err := f.store.GetSyncHistory(ctx, et)
		require.NoError(t, err)
		require.NotNil(t, rec, et)
		assert.Equal(t, types.SyncSuccess, rec.Status, et)
		assert.False(t, rec.LastSyncTime.IsZero(), et)
	}

	cached, err := f.store.GetWorkItems(ctx, []int{3})
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.NotNil(t, cached[0].ParentID)
	assert.Equal(t, 2, *cached[0].ParentID)
}

func TestRun_IncrementalUsesWatermark(t *testing.T) {
	f := newFixture(t)
	f.seedHierarchy()
	ctx := context.Background()

	_, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)

	res, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Counts[types.EntityEpics], "unchanged items fall outside the cutoff")
	assert.Equal(t, 0, res.Counts[types.EntityStories])
	// The hierarchy still reflects every cached item.
	assert.Equal(t, 2, res.Hierarchy.Stories)

	res, err = f.svc.Run(ctx, Request{ForceFullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[types.EntityEpics])
	assert.Equal(t, 2, res.Counts[types.EntityStories])
}

func TestRun_RemoteFailureServesCache(t *testing.T) {
	f := newFixture(t)
	f.seedHierarchy()
	ctx := context.Background()

	_, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	before, err := f.store.GetSyncHistory(ctx, types.EntityStories)
	require.NoError(t, err)
	require.NotNil(t, before)

	f.fake.FailWith(http.StatusServiceUnavailable)
	res, err := f.svc.Run(ctx, Request{ForceFullSync: true})
	require.NoError(t, err)
	assert.True(t, res.Success, "cached results keep the run successful")
	assert.Len(t, res.Degraded, 6)
	assert.Equal(t, 2, res.Counts[types.EntityStories])
	assert.Contains(t, res.Message, "served from cache")

	after, err := f.store.GetSyncHistory(ctx, types.EntityStories)
	require.NoError(t, err)
	assert.Equal(t, types.SyncPartial, after.Status)
	assert.NotEmpty(t, after.ErrorMessage)
	assert.Equal(t, before.LastSyncTime, after.LastSyncTime, "degraded runs keep the watermark")
}

func TestRun_RemoteFailureWithEmptyCache(t *testing.T) {
	f := newFixture(t)
	f.fake.FailWith(http.StatusInternalServerError)

	res, err := f.svc.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Failed, 6)
	assert.Contains(t, res.Message, "failed")

	rec, err := f.store.GetSyncHistory(context.Background(), types.EntityEpics)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.SyncFailed, rec.Status)
	assert.True(t, rec.LastSyncTime.IsZero())
}

func TestRun_RefreshesMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(10, types.ADOTypeFeature, 0, map[string]any{"Custom.ProductBoardID": "F1"})
	f.add(11, types.ADOTypeFeature, 0, map[string]any{"Custom.ProductBoardID": "F2"})
	f.add(12, types.ADOTypeFeature, 0, map[string]any{"Custom.ProductBoardID": "F3"})

	require.NoError(t, f.store.UpsertMapping(ctx, types.Mapping{
		PSID: "F1", LastKnownPSStatus: "With Engineering", SyncStatus: types.MappingPending,
	}))
	require.NoError(t, f.store.UpsertMapping(ctx, types.Mapping{
		PSID: "F2", WTSID: 99, LastKnownPSStatus: "Planned", SyncStatus: types.MappingSynced,
	}))

	res, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.MappingsRefreshed)

	m1, _ := f.store.GetMapping(ctx, "F1")
	require.NotNil(t, m1)
	assert.Equal(t, 10, m1.WTSID)
	assert.Equal(t, types.MappingSynced, m1.SyncStatus, "pending create is settled")
	assert.Equal(t, "With Engineering", m1.LastKnownPSStatus)
	assert.NotEmpty(t, m1.WTSURL)

	m2, _ := f.store.GetMapping(ctx, "F2")
	require.NotNil(t, m2)
	assert.Equal(t, 11, m2.WTSID)
	assert.Equal(t, "Planned", m2.LastKnownPSStatus)

	m3, _ := f.store.GetMapping(ctx, "F3")
	assert.Nil(t, m3, "bulk sync never creates mappings")

	res, err = f.svc.Run(ctx, Request{ForceFullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.MappingsRefreshed)
}

func TestRun_EntityTypeFilter(t *testing.T) {
	f := newFixture(t, types.EntityTeams)
	f.seedHierarchy()

	res, err := f.svc.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, map[types.EntityType]int{types.EntityTeams: 2}, res.Counts)
	assert.Equal(t, 0, f.fake.Calls("wiql"))
	assert.Equal(t, 0, f.fake.Calls("types"))
}

func TestRun_RequestCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Run(context.Background(), Request{PAT: "other-pat"})
	require.NoError(t, err)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(":other-pat"))
	assert.Equal(t, want, f.fake.LastAuthorization())

	noFactory := New(f.fake.Config(), ado.New(f.fake.Config(), f.mapper), nil, f.store, nil, nil)
	_, err = noFactory.Run(context.Background(), Request{PAT: "x"})
	assert.Error(t, err)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	f.svc.running.Lock()
	defer f.svc.running.Unlock()

	res, err := f.svc.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrRunning)
	assert.False(t, res.Success)
}

func TestHierarchyTree(t *testing.T) {
	f := newFixture(t)
	f.seedHierarchy()
	ctx := context.Background()
	_, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)

	tree, err := f.svc.Hierarchy(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, 1, tree[0].Item.ID)
	require.Len(t, tree[0].Children, 1)
	assert.Len(t, tree[0].Children[0].Children, 2)
}
