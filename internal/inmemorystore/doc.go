// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the kvstore.Store interface.
//
// Values are copied on the way in and on the way out, so callers may reuse
// their buffers.
//
// This implementation is suitable for tests and for commands that do not
// need to remember anything once they exit. Use internal/sqlitestore when
// the saved workflow or client id must survive restarts.
package inmemorystore
