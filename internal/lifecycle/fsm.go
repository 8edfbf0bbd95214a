// Package lifecycle implements the webhook event state machine recorded in the
// sync audit log.
package lifecycle

import (
	"fmt"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.SyncLogStatus][]types.SyncLogStatus{
	types.LogReceived:           {types.LogIgnored, types.LogFetched, types.LogFetchError, types.LogLockError},
	types.LogFetched:            {types.LogSkippedStatusCheck, types.LogProcessingRequired},
	types.LogProcessingRequired: {types.LogDryRun, types.LogADOCreated, types.LogADOUpdated, types.LogADOError, types.LogMappingUpdateError},
	types.LogIgnored:            {},
	types.LogFetchError:         {},
	types.LogLockError:          {},
	types.LogSkippedStatusCheck: {},
	types.LogDryRun:             {},
	types.LogADOCreated:         {},
	types.LogADOUpdated:         {},
	types.LogADOError:           {},
	types.LogMappingUpdateError: {},
}

// CanTransition checks if moving an event from one status to another is valid.
func CanTransition(from, to types.SyncLogStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, returning an error if it is invalid.
func Transition(from, to types.SyncLogStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status ends processing of an event.
func IsTerminal(status types.SyncLogStatus) bool {
	allowed, ok := validTransitions[status]
	return ok && len(allowed) == 0
}

// IsError returns true for terminal statuses that warrant an operator alert.
func IsError(status types.SyncLogStatus) bool {
	switch status {
	case types.LogFetchError, types.LogADOError, types.LogMappingUpdateError, types.LogLockError:
		return true
	}
	return false
}
