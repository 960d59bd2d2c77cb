// Package clientid provides the identifier this installation uses when it
// talks to the backend. The backend routes a run's events to the client id
// that queued it, so the same id must be used for the prompt and the stream.
package clientid

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/kvstore"
)

// Get returns the persisted client id, creating and storing one on first
// use. Storage failures are logged and never prevent an id from being
// returned. store may be nil.
func Get(ctx context.Context, store kvstore.Store) string {
	logger := ctxlog.FromContext(ctx)
	if store == nil {
		return uuid.NewString()
	}

	existing, ok, err := store.Get(ctx, kvstore.ClientIDKey)
	if err != nil {
		logger.Warn("Failed to read client id, using a temporary one", "error", err)
		return uuid.NewString()
	}
	if id := strings.TrimSpace(string(existing)); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	if err := store.Set(ctx, kvstore.ClientIDKey, []byte(id)); err != nil {
		logger.Warn("Failed to persist client id", "error", err)
	} else {
		logger.Debug("Created client id", "client_id", id)
	}
	return id
}
