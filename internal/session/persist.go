package session

import (
	"context"
	"errors"

	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/snapshot"
)

// ErrNoStore is returned by Save when the session has no store.
var ErrNoStore = errors.New("no workflow store configured")

// Snapshot wraps the current graph in a fresh envelope.
func (s *Session) Snapshot() snapshot.WorkflowSnapshot {
	return snapshot.Create(s.Graph(), s.now())
}

// Save persists the current graph.
func (s *Session) Save(ctx context.Context) (snapshot.WorkflowSnapshot, error) {
	if s.store == nil {
		return snapshot.WorkflowSnapshot{}, ErrNoStore
	}
	return snapshot.Save(ctx, s.store, s.Graph(), s.now())
}

// Restore replaces the graph with the saved one. Only the first call in a
// session reads the store; later calls do nothing. It reports whether a
// graph was applied. Missing or damaged snapshots leave the graph untouched.
func (s *Session) Restore(ctx context.Context) bool {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		return false
	}
	s.restored = true
	s.mu.Unlock()

	if s.store == nil {
		return false
	}
	logger := ctxlog.FromContext(ctx)
	snap, err := snapshot.Load(ctx, s.store)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return false
	case errors.Is(err, snapshot.ErrInvalid):
		logger.Warn("Ignoring damaged workflow snapshot", "error", err)
		return false
	case err != nil:
		logger.Warn("Failed to restore workflow", "error", err)
		return false
	}

	s.Load(snap.Graph)
	logger.Info("Restored workflow", "nodes", len(snap.Graph.Nodes), "edges", len(snap.Graph.Edges), "saved_at", snap.SavedAt)
	return true
}
