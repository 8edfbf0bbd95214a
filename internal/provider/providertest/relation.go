package providertest

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func parentRel(source, target int) types.Relation {
	return types.Relation{
		SourceID:  source,
		TargetID:  intp(target),
		TargetURL: "https://dev.azure.com/acme/_apis/wit/workItems/" + strconv.Itoa(target),
		RelType:   "System.LinkTypes.Hierarchy-Reverse",
		IsParent:  true,
	}
}

// TestRelationsReplaceWholesale verifies a replace drops prior edges of the
// listed sources and leaves other sources alone.
func TestRelationsReplaceWholesale(t *testing.T, store provider.Store) {
	ctx := context.Background()
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{
		{ID: 9601, Type: types.ADOTypeFeature, Title: "a"},
		{ID: 9602, Type: types.ADOTypeFeature, Title: "b"},
	}))

	link := types.Relation{
		SourceID:          9601,
		TargetURL:         "https://acme.productboard.com/feature-board/features/pb-1",
		RelType:           "Hyperlink",
		Attributes:        map[string]any{"comment": "ProductBoard feature"},
		IsHyperlink:       true,
		IsCrossSystemLink: true,
		CrossSystemID:     "pb-1",
	}
	require.NoError(t, store.ReplaceRelations(ctx, []int{9601, 9602},
		[]types.Relation{parentRel(9601, 9600), link, parentRel(9602, 9600)}))

	rels, err := store.GetRelations(ctx, []int{9601})
	require.NoError(t, err)
	require.Len(t, rels, 2)

	var gotLink types.Relation
	for _, r := range rels {
		if r.IsHyperlink {
			gotLink = r
		}
	}
	assert.Equal(t, link.TargetURL, gotLink.TargetURL)
	assert.Nil(t, gotLink.TargetID)
	assert.True(t, gotLink.IsCrossSystemLink)
	assert.Equal(t, "pb-1", gotLink.CrossSystemID)
	assert.Equal(t, "ProductBoard feature", gotLink.Attributes["comment"])

	// Replace only 9601: its old edges go, 9602 keeps its own.
	require.NoError(t, store.ReplaceRelations(ctx, []int{9601}, []types.Relation{parentRel(9601, 9605)}))
	rels, err = store.GetRelations(ctx, []int{9601})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.NotNil(t, rels[0].TargetID)
	assert.Equal(t, 9605, *rels[0].TargetID)
	assert.True(t, rels[0].IsParent)

	rels, err = store.GetRelations(ctx, []int{9602})
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	// Relations come back attached to items.
	items, err := store.GetWorkItems(ctx, []int{9601})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Relations, 1)
	assert.Equal(t, 9601, items[0].Relations[0].SourceID)

	// Replacing with nothing clears the source.
	require.NoError(t, store.ReplaceRelations(ctx, []int{9601}, nil))
	rels, err = store.GetRelations(ctx, []int{9601})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

// TestRelationsDelete verifies deletion by source id.
func TestRelationsDelete(t *testing.T, store provider.Store) {
	ctx := context.Background()
	require.NoError(t, store.UpsertWorkItems(ctx, []types.WorkItem{
		{ID: 9701, Type: types.ADOTypeStory, Title: "a"},
		{ID: 9702, Type: types.ADOTypeStory, Title: "b"},
	}))
	require.NoError(t, store.ReplaceRelations(ctx, []int{9701, 9702},
		[]types.Relation{parentRel(9701, 9700), parentRel(9702, 9700)}))

	require.NoError(t, store.DeleteRelationsForSources(ctx, []int{9701}))
	rels, err := store.GetRelations(ctx, []int{9701, 9702})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, 9702, rels[0].SourceID)

	require.NoError(t, store.DeleteRelationsForSources(ctx, nil))
}
