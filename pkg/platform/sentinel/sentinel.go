// Package sentinel holds the storage-level errors vault stores return. The
// vault service maps them to domain errors; policy failures never use them.
package sentinel

import "errors"

var (
	// ErrNotFound means the key has never been written.
	ErrNotFound = errors.New("key not found")
	// ErrConflict means a concurrent writer invalidated the transaction and
	// the call may be retried.
	ErrConflict = errors.New("write conflict")
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)
