package providertest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func intp(v int) *int { return &v }

func f64p(v float64) *float64 { return &v }

// fullWorkItem populates every stored column.
func fullWorkItem(id int) types.WorkItem {
	ts := time.Date(2025, 5, 4, 3, 2, 1, 123456000, time.UTC)
	return types.WorkItem{
		ID:                 id,
		URL:                "https://dev.azure.com/acme/_apis/wit/workItems/1",
		Rev:                7,
		Type:               types.ADOTypeFeature,
		Title:              "Saved carts",
		State:              "Active",
		Reason:             "Implementation started",
		AreaPath:           `Shop\Checkout`,
		AreaID:             12,
		IterationPath:      `Shop\Sprint 4`,
		IterationID:        40,
		Priority:           intp(2),
		ValueArea:          "Business",
		Tags:               []string{"web", "q3"},
		Description:        "<p>Persist carts</p>",
		History:            "moved to active",
		AcceptanceCriteria: "carts survive logout",
		AssignedTo:         types.Identity{DisplayName: "Dana Lee", UniqueName: "dana@acme.test"},
		CreatedBy:          types.Identity{DisplayName: "Sam Roe", UniqueName: "sam@acme.test"},
		ChangedBy:          types.Identity{DisplayName: "Dana Lee", UniqueName: "dana@acme.test"},
		CreatedDate:        ts,
		ChangedDate:        ts.Add(time.Hour),
		StateChangeDate:    ts.Add(30 * time.Minute),
		BoardColumn:        "Doing",
		BoardColumnDone:    true,
		CommentCount:       3,
		Watermark:          991,
		StackRank:          f64p(1999.5),
		Effort:             f64p(8),
		StoryPoints:        f64p(5),
		BusinessValue:      intp(300),
		ProductBoardID:     "pb-ct-1",
		Unrecognized:       map[string]any{"Custom.Risk": "low"},
		Raw:                json.RawMessage(`{"id":1}`),
		LastSyncedAt:       ts.Add(2 * time.Hour),
	}
}

// TestWorkItemUpsertGet verifies every column survives a write and that missing ids are skipped.
func TestWorkItemUpsertGet(t *testing.T, store provider.Store) {
	ctx := context.Background()
	want := fullWorkItem(9101)
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{want}))

	got, err := store.GetWorkItems(ctx, []int{9101, 9199})
	require.NoError(t, err)
	require.Len(t, got, 1)
	wi := got[0]

	assert.Equal(t, want.ID, wi.ID)
	assert.Equal(t, want.URL, wi.URL)
	assert.Equal(t, want.Rev, wi.Rev)
	assert.Equal(t, want.Type, wi.Type)
	assert.Equal(t, want.Title, wi.Title)
	assert.Equal(t, want.State, wi.State)
	assert.Equal(t, want.Reason, wi.Reason)
	assert.Equal(t, want.AreaPath, wi.AreaPath)
	assert.Equal(t, want.AreaID, wi.AreaID)
	assert.Equal(t, want.IterationPath, wi.IterationPath)
	assert.Equal(t, want.IterationID, wi.IterationID)
	assert.Equal(t, want.Priority, wi.Priority)
	assert.Equal(t, want.ValueArea, wi.ValueArea)
	assert.Equal(t, want.Tags, wi.Tags)
	assert.Equal(t, want.Description, wi.Description)
	assert.Equal(t, want.History, wi.History)
	assert.Equal(t, want.AcceptanceCriteria, wi.AcceptanceCriteria)
	assert.Equal(t, want.AssignedTo, wi.AssignedTo)
	assert.Equal(t, want.CreatedBy, wi.CreatedBy)
	assert.Equal(t, want.ChangedBy, wi.ChangedBy)
	assert.WithinDuration(t, want.CreatedDate, wi.CreatedDate, time.Microsecond)
	assert.WithinDuration(t, want.ChangedDate, wi.ChangedDate, time.Microsecond)
	assert.WithinDuration(t, want.StateChangeDate, wi.StateChangeDate, time.Microsecond)
	assert.WithinDuration(t, want.LastSyncedAt, wi.LastSyncedAt, time.Microsecond)
	assert.Equal(t, want.BoardColumn, wi.BoardColumn)
	assert.Equal(t, want.BoardColumnDone, wi.BoardColumnDone)
	assert.Equal(t, want.CommentCount, wi.CommentCount)
	assert.Equal(t, want.Watermark, wi.Watermark)
	assert.Equal(t, want.StackRank, wi.StackRank)
	assert.Equal(t, want.Effort, wi.Effort)
	assert.Equal(t, want.StoryPoints, wi.StoryPoints)
	assert.Equal(t, want.BusinessValue, wi.BusinessValue)
	assert.Equal(t, want.ProductBoardID, wi.ProductBoardID)
	assert.Equal(t, want.Unrecognized, wi.Unrecognized)
	assert.JSONEq(t, string(want.Raw), string(wi.Raw))
	assert.Nil(t, wi.ParentID, "upsert never writes parent linkage")

	// Overwrite
	want.Title = "Saved carts v2"
	want.Rev = 8
	want.Priority = nil
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{want}))
	got, err = store.GetWorkItems(ctx, []int{9101})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Saved carts v2", got[0].Title)
	assert.Equal(t, 8, got[0].Rev)
	assert.Nil(t, got[0].Priority)
}

// TestWorkItemListByType verifies type filtering and id ordering.
func TestWorkItemListByType(t *testing.T, store provider.Store) {
	ctx := context.Background()
	items := []types.WorkItem{
		{ID: 9203, Type: "CT Epic", Title: "c"},
		{ID: 9201, Type: "CT Epic", Title: "a"},
		{ID: 9202, Type: "CT Story", Title: "b"},
	}
	require.NoError(t, store.UpsertWorkItems(ctx, items))

	epics, err := store.ListWorkItemsByType(ctx, "CT Epic")
	require.NoError(t, err)
	require.Len(t, epics, 2)
	assert.Equal(t, 9201, epics[0].ID)
	assert.Equal(t, 9203, epics[1].ID)

	none, err := store.ListWorkItemsByType(ctx, "CT Missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestUpsertKeepsParent verifies a re-upsert leaves an established parent link alone.
func TestUpsertKeepsParent(t *testing.T, store provider.Store) {
	ctx := context.Background()
	parent := types.WorkItem{ID: 9301, Type: types.ADOTypeEpic, Title: "epic"}
	child := types.WorkItem{ID: 9302, Type: types.ADOTypeFeature, Title: "feature", ParentID: intp(9301)}
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{parent, child}))

	got, err := store.GetWorkItems(ctx, []int{9302})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ParentID)

	require.NoError(t, store.SetParentIDs(ctx, map[int]int{9302: 9301}))
	child.Title = "feature v2"
	child.ParentID = nil
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{child}))

	got, err = store.GetWorkItems(ctx, []int{9302})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "feature v2", got[0].Title)
	require.NotNil(t, got[0].ParentID)
	assert.Equal(t, 9301, *got[0].ParentID)
}

// TestSetParentIDs verifies setting, clearing and ignoring unknown children.
func TestSetParentIDs(t *testing.T, store provider.Store) {
	ctx := context.Background()
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{
		{ID: 9401, Type: types.ADOTypeEpic, Title: "epic"},
		{ID: 9402, Type: types.ADOTypeFeature, Title: "feature"},
	}))

	require.NoError(t, store.SetParentIDs(ctx, map[int]int{9402: 9401, 9499: 9401}))
	got, err := store.GetWorkItems(ctx, []int{9402})
	require.NoError(t, err)
	require.NotNil(t, got[0].ParentID)
	assert.Equal(t, 9401, *got[0].ParentID)

	require.NoError(t, store.SetParentIDs(ctx, map[int]int{9402: 0}))
	got, err = store.GetWorkItems(ctx, []int{9402})
	require.NoError(t, err)
	assert.Nil(t, got[0].ParentID)

	require.NoError(t, store.SetParentIDs(ctx, nil))
}

// TestExistingWorkItemIDs verifies presence checks.
func TestExistingWorkItemIDs(t *testing.T, store provider.Store) {
	ctx := context.Background()
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{
		{ID: 9501, Type: types.ADOTypeEpic, Title: "a"},
		{ID: 9502, Type: types.ADOTypeEpic, Title: "b"},
	}))

	got, err := store.ExistingWorkItemIDs(ctx, []int{9501, 9502, 9503})
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{9501: true, 9502: true}, got)

	got, err = store.ExistingWorkItemIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
