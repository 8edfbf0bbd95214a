package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// WaitForHistory polls until a sync history record exists for the entity type.
func WaitForHistory(t *testing.T, store *MockStore, entityType types.EntityType, timeout time.Duration) types.SyncHistoryRecord {
	t.Helper()
	var rec types.SyncHistoryRecord
	WaitFor(t, timeout, func() bool {
		got, err := store.GetSyncHistory(context.Background(), entityType)
		if err != nil || got == nil {
			return false
		}
		rec = *got
		return true
	}, "sync history for "+string(entityType))
	return rec
}

// LastSyncLog returns the most recently created audit row, failing the test
// when there is none.
func LastSyncLog(t *testing.T, store *MockStore) types.SyncLog {
	t.Helper()
	logs := store.SyncLogs()
	if len(logs) == 0 {
		t.Fatal("no sync logs recorded")
	}
	return logs[len(logs)-1]
}
