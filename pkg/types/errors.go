package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store point lookups that miss.
var ErrNotFound = errors.New("not found")

// ErrMappingConflict marks a concurrent mapping write for the same ProductBoard id.
// Writes are serialized by the per-item lock, so no store currently returns it.
var ErrMappingConflict = errors.New("mapping conflict")

// AuthError rejects an inbound request before any side effect.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "unauthorized: " + e.Reason
}

// ParseError marks an inbound payload that cannot be acted on.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Reason
}

// StoreError wraps a cache store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
