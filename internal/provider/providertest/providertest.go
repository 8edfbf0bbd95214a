// Package providertest provides shared conformance tests for provider.Store
// implementations. Call RunAll from a test function to verify a store
// satisfies the full behavioral contract.
package providertest

import (
	"testing"

	"github.com/AlieInmar1/pbtoado-sub002/internal/provider"
)

// RunAll runs the complete store conformance suite as subtests. Each subtest
// uses its own ids, so a single store instance can serve the whole suite.
func RunAll(t *testing.T, store provider.Store) {
	t.Helper()

	t.Run("WorkItemUpsertGet", func(t *testing.T) { TestWorkItemUpsertGet(t, store) })
	t.Run("WorkItemListByType", func(t *testing.T) { TestWorkItemListByType(t, store) })
	t.Run("UpsertKeepsParent", func(t *testing.T) { TestUpsertKeepsParent(t, store) })
	t.Run("SetParentIDs", func(t *testing.T) { TestSetParentIDs(t, store) })
	t.Run("ExistingWorkItemIDs", func(t *testing.T) { TestExistingWorkItemIDs(t, store) })
	t.Run("RelationsReplaceWholesale", func(t *testing.T) { TestRelationsReplaceWholesale(t, store) })
	t.Run("RelationsDelete", func(t *testing.T) { TestRelationsDelete(t, store) })
	t.Run("ReferenceData", func(t *testing.T) { TestReferenceData(t, store) })
	t.Run("MappingUpsert", func(t *testing.T) { TestMappingUpsert(t, store) })
	t.Run("SyncHistoryOverwrite", func(t *testing.T) { TestSyncHistoryOverwrite(t, store) })
	t.Run("SyncLogLifecycle", func(t *testing.T) { TestSyncLogLifecycle(t, store) })
	t.Run("SyncLogListNewestFirst", func(t *testing.T) { TestSyncLogListNewestFirst(t, store) })
	t.Run("Ping", func(t *testing.T) { TestPing(t, store) })
}
