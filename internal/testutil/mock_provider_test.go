package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider/providertest"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func TestMockStoreConformance(t *testing.T) {
	providertest.RunAll(t, NewMockStore())
}

func TestMockStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	s := NewMockStore()

	s.FailWrites(true)
	err := s.UpsertMapping(ctx, types.Mapping{PSID: "ps-1"})
	assert.ErrorIs(t, err, ErrInjected)
	s.FailWrites(false)

	s.FailMappingWrites(true)
	assert.ErrorIs(t, s.UpsertMapping(ctx, types.Mapping{PSID: "ps-1"}), ErrInjected)
	assert.NoError(t, s.UpsertWorkItems(ctx, []types.WorkItem{{ID: 1, Type: "Epic"}}))
	s.FailMappingWrites(false)

	s.FailReads(true)
	_, err = s.GetWorkItems(ctx, []int{1})
	assert.ErrorIs(t, err, ErrInjected)
	s.FailReads(false)

	items, err := s.GetWorkItems(ctx, []int{1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
