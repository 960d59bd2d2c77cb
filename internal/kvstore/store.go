// Package kvstore defines the key-value storage used for data that must
// outlive a single command: the saved workflow and the client id.
//
// # Keys
//
// Keys are plain strings namespaced by purpose and format version, for
// example "toucan:workflow:v1". Values are opaque bytes; callers own the
// encoding.
//
// # Implementations
//
//   - internal/inmemorystore: ephemeral, for tests and one-shot commands
//   - internal/sqlitestore: a single SQLite table, for persistence across runs
package kvstore

import "context"

// Well-known keys.
const (
	WorkflowKey = "toucan:workflow:v1"
	ClientIDKey = "toucan:client-id:v1"
)

// Store is a string-keyed byte store.
//
// Implementations MUST be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. ok is false when the key has
	// never been set or was deleted.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the resources held by the store.
	Close() error
}
