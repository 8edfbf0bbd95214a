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

// TestReferenceData verifies area paths, teams and work item types upsert on their keys.
func TestReferenceData(t *testing.T, store provider.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.UpsertAreaPaths(ctx, []types.AreaPath{
		{ID: 99001, Name: "CT", Path: `CT`, StructureType: "area", HasChildren: true, LastSyncedAt: now},
		{ID: 99002, Name: "Checkout", Path: `CT\Checkout`, LastSyncedAt: now},
	}))
	require.NoError(t, store.UpsertAreaPaths(ctx, []types.AreaPath{
		{ID: 99002, Name: "Checkout", Path: `CT\Checkout`, HasChildren: true, LastSyncedAt: now},
	}))
	areas, err := store.ListAreaPaths(ctx)
	require.NoError(t, err)
	var ct []types.AreaPath
	for _, a := range areas {
		if a.Path == `CT` || a.Path == `CT\Checkout` {
			ct = append(ct, a)
		}
	}
	require.Len(t, ct, 2)
	assert.Equal(t, `CT`, ct[0].Path)
	assert.Equal(t, "area", ct[0].StructureType)
	assert.True(t, ct[1].HasChildren)
	assert.WithinDuration(t, now, ct[1].LastSyncedAt, time.Microsecond)

	require.NoError(t, store.UpsertTeams(ctx, []types.Team{
		{ID: "ct-team-1", Name: "CT Payments", URL: "https://x/teams/1", LastSyncedAt: now},
	}))
	require.NoError(t, store.UpsertTeams(ctx, []types.Team{
		{ID: "ct-team-1", Name: "CT Payments", Description: "cards and wallets", LastSyncedAt: now},
	}))
	teams, err := store.ListTeams(ctx)
	require.NoError(t, err)
	var team *types.Team
	for i := range teams {
		if teams[i].ID == "ct-team-1" {
			team = &teams[i]
		}
	}
	require.NotNil(t, team)
	assert.Equal(t, "cards and wallets", team.Description)

	require.NoError(t, store.UpsertWorkItemTypes(ctx, []types.WorkItemType{
		{Name: "CT Bug", ReferenceName: "Microsoft.VSTS.WorkItemTypes.Bug", Color: "CC293D", LastSyncedAt: now},
	}))
	require.NoError(t, store.UpsertWorkItemTypes(ctx, []types.WorkItemType{
		{Name: "CT Bug", ReferenceName: "Microsoft.VSTS.WorkItemTypes.Bug", IsDisabled: true, LastSyncedAt: now},
	}))
	wits, err := store.ListWorkItemTypes(ctx)
	require.NoError(t, err)
	var bug *types.WorkItemType
	for i := range wits {
		if wits[i].Name == "CT Bug" {
			bug = &wits[i]
		}
	}
	require.NotNil(t, bug)
	assert.True(t, bug.IsDisabled)
	assert.Equal(t, "Microsoft.VSTS.WorkItemTypes.Bug", bug.ReferenceName)
}
