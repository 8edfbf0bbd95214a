package productboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/remote"
	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func testMapper(t *testing.T) *mapping.Mapper {
	t.Helper()
	m, err := mapping.New(mapping.Config{
		CustomFields: types.ProductBoardCustomFields{
			Reach: "cf-reach", Impact: "cf-impact", Confidence: "cf-conf",
			Effort: "cf-effort", Score: "cf-score", Teams: "cf-teams",
		},
	})
	require.NoError(t, err)
	return m
}

func TestTestConnection(t *testing.T) {
	fake := testutil.NewFakeProductBoard(t)
	c := New(fake.Config())

	require.NoError(t, c.TestConnection(context.Background()))
	auth, version := fake.LastHeaders()
	assert.Equal(t, "Bearer test-token", auth)
	assert.Equal(t, "1", version)

	fake.FailWith(401)
	err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, remote.IsStatus(err, 401))
}

func TestGetFeature(t *testing.T) {
	fake := testutil.NewFakeProductBoard(t)
	fake.AddFeature(mapping.Feature{ID: "f-1", Name: "Checkout", Status: &mapping.FeatureStatus{Name: "Planned"}})
	c := New(fake.Config())

	f, err := c.GetFeature(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "Checkout", f.Name)
	assert.Equal(t, "Planned", f.Status.Name)

	_, err = c.GetFeature(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
}

func TestListFeatures_PaginatesAndFilters(t *testing.T) {
	fake := testutil.NewFakeProductBoard(t)
	fake.PageSize = 2
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"f-1", "f-2", "f-3", "f-4", "f-5"} {
		ts := old
		if i%2 == 0 {
			ts = recent
		}
		fake.AddFeature(mapping.Feature{ID: id, Name: id, UpdatedAt: &ts})
	}
	c := New(fake.Config())

	all, err := c.ListFeatures(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, 3, fake.Calls("list"))

	changed, err := c.ListFeatures(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var ids []string
	for _, f := range changed {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"f-1", "f-3", "f-5"}, ids)
}

func TestCustomFieldValues(t *testing.T) {
	fake := testutil.NewFakeProductBoard(t)
	fake.PageSize = 1
	fake.AddFeature(mapping.Feature{ID: "f-1", Name: "Checkout"})
	fake.SetCustomValues("f-1", mapping.CustomValues{"cf-reach": 80.0, "cf-teams": []any{"Payments"}})
	c := New(fake.Config())
	ctx := context.Background()

	values, err := c.GetCustomFieldValues(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, values["cf-reach"])
	assert.Equal(t, []any{"Payments"}, values["cf-teams"])
	assert.Equal(t, 2, fake.Calls("values"))

	require.NoError(t, c.SetCustomFieldValue(ctx, "f-1", "cf-effort", 2.0))
	assert.Equal(t, 2.0, fake.CustomValues("f-1")["cf-effort"])
}

func TestCustomFieldType(t *testing.T) {
	assert.Equal(t, "number", customFieldType(1.5))
	assert.Equal(t, "multi-dropdown", customFieldType([]string{"a"}))
	assert.Equal(t, "text", customFieldType("x"))
}

func TestWriteItem_CreateThenUpdate(t *testing.T) {
	fake := testutil.NewFakeProductBoard(t)
	c := New(fake.Config())
	m := testMapper(t)
	ctx := context.Background()

	reach, impact, conf, effort := 10.0, 3.0, 0.8, 3.0
	item := types.Item{
		Kind:       types.KindFeature,
		Title:      "Saved carts",
		Status:     types.CommitmentCommitted,
		Owner:      "pm@acme.test",
		Reach:      &reach,
		Impact:     &impact,
		Confidence: &conf,
		Effort:     &effort,
		Teams:      []string{"Payments"},
	}

	created, err := c.WriteItem(ctx, m, item)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, fake.Calls("create"))

	stored, ok := fake.Feature(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Planned", stored.Status.Name)
	assert.Equal(t, "pm@acme.test", stored.Owner.Email)

	values := fake.CustomValues(created.ID)
	assert.Equal(t, 8.0, values["cf-score"])
	assert.Equal(t, []any{"Payments"}, values["cf-teams"])

	item.ProductBoardID = created.ID
	item.Title = "Saved carts v2"
	_, err = c.WriteItem(ctx, m, item)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("patch"))
	stored, _ = fake.Feature(created.ID)
	assert.Equal(t, "Saved carts v2", stored.Name)

	// read back through the mapper
	values, err = c.GetCustomFieldValues(ctx, created.ID)
	require.NoError(t, err)
	f, err := c.GetFeature(ctx, created.ID)
	require.NoError(t, err)
	back := m.ItemFromFeature(f, values)
	assert.Equal(t, item.Title, back.Title)
	assert.Equal(t, item.Status, back.Status)
	assert.Equal(t, item.Teams, back.Teams)
	assert.Equal(t, 8.0, *back.Score)
}
