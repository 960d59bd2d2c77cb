package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/toucan/internal/catalog"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/prompt"
	"github.com/specialistvlad/toucan/internal/schema"
	"github.com/specialistvlad/toucan/internal/session"
	"github.com/specialistvlad/toucan/internal/snapshot"
	"github.com/specialistvlad/toucan/internal/watcher"
)

// ErrNothingSaved is returned by RestoreWorkflow when the store holds no
// usable workflow.
var ErrNothingSaved = errors.New("no saved workflow")

// Report is the result of checking a workflow file.
type Report struct {
	Path     string   `json:"path" yaml:"path"`
	Nodes    int      `json:"nodes" yaml:"nodes"`
	Edges    int      `json:"edges" yaml:"edges"`
	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`
}

// OK reports whether the workflow could be queued.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Catalog lists the backend's node types, fuzzy-filtered by query when it is
// not blank.
func (a *App) Catalog(ctx context.Context, query string) ([]schema.CatalogEntry, error) {
	entries, err := a.catalog.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load node catalog: %w", err)
	}
	return catalog.Search(entries, query), nil
}

// ValidateFile checks every edge of the workflow and compiles it without
// submitting.
func (a *App) ValidateFile(ctx context.Context, path string) (Report, error) {
	g, err := readWorkflow(path)
	if err != nil {
		return Report{}, err
	}
	s, err := a.newSession(ctx)
	if err != nil {
		return Report{}, err
	}
	s.Load(g)

	report := Report{Path: path, Nodes: len(g.Nodes), Edges: len(g.Edges)}
	report.Errors = append(report.Errors, edgeMessages(s.Validate())...)
	result := prompt.Compile(g.Nodes, g.Edges, s.Schemas())
	report.Errors = append(report.Errors, result.Errors...)
	report.Warnings = append(report.Warnings, result.Warnings...)

	ctxlog.FromContext(ctx).Debug("Workflow validated.", "path", path, "errors", len(report.Errors), "warnings", len(report.Warnings))
	return report, nil
}

// WatchValidate validates path once and again after every change until ctx
// ends. Each outcome is passed to onReport.
func (a *App) WatchValidate(ctx context.Context, path string, onReport func(Report, error)) error {
	w, err := watcher.New(path, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	changes, err := w.Start(ctx)
	if err != nil {
		return err
	}
	onReport(a.ValidateFile(ctx, path))

	logger := ctxlog.FromContext(ctx)
	logger.Info("Watching workflow for changes.", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			logger.Debug("Workflow changed.", "path", path)
			onReport(a.ValidateFile(ctx, path))
		}
	}
}

// SaveWorkflow stores the workflow file as the current snapshot.
func (a *App) SaveWorkflow(ctx context.Context, path string) (snapshot.WorkflowSnapshot, error) {
	g, err := readWorkflow(path)
	if err != nil {
		return snapshot.WorkflowSnapshot{}, err
	}
	s := session.New(session.Options{Store: a.store})
	s.Load(g)
	return s.Save(ctx)
}

// RestoreWorkflow returns the stored snapshot's graph.
func (a *App) RestoreWorkflow(ctx context.Context) (graph.Graph, error) {
	s := session.New(session.Options{Store: a.store})
	if !s.Restore(ctx) {
		return graph.Graph{}, ErrNothingSaved
	}
	return s.Graph(), nil
}

func (a *App) newSession(ctx context.Context) (*session.Session, error) {
	schemas, err := a.catalog.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load node catalog: %w", err)
	}
	return session.New(session.Options{
		Schemas:  schemas,
		Store:    a.store,
		Backend:  a.client,
		Monitor:  a.monitor,
		ClientID: a.clientID,
	}), nil
}

// readWorkflow accepts both saved snapshots and bare graph exports.
func readWorkflow(path string) (graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("failed to read workflow: %w", err)
	}
	g, err := snapshot.ParseWorkflow(data)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}
	return g, nil
}

func edgeMessages(issues []graph.EdgeIssue) []string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, fmt.Sprintf("Edge %s is invalid: %s.", issue.Edge.ID, issue.Reason))
	}
	return msgs
}
