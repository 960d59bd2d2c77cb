package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/prompt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// QueueStatus is how a Queue call ended.
type QueueStatus string

const (
	// QueueBlocked means compilation reported errors; nothing was sent.
	QueueBlocked QueueStatus = "blocked"
	// QueueDeclined means the caller refused to run despite warnings.
	QueueDeclined QueueStatus = "declined"
	// QueueFailed means the backend rejected or never received the run.
	QueueFailed QueueStatus = "failed"
	// QueueSubmitted means the backend accepted the run.
	QueueSubmitted QueueStatus = "submitted"
)

// Confirm is asked whether to run despite warnings.
type Confirm func(warnings []string) bool

// QueueOutcome describes a Queue call.
type QueueOutcome struct {
	Status   QueueStatus
	Errors   []string
	Warnings []string
	// Result is set once the backend was contacted.
	Result comfy.QueueResult
}

// Message renders the outcome the way it is shown to the user.
func (o QueueOutcome) Message() string {
	switch o.Status {
	case QueueBlocked:
		return "Fix the following before running:\n" + bulletList(o.Errors)
	case QueueDeclined:
		return "Run cancelled."
	case QueueFailed:
		return o.Result.Message
	default:
		return fmt.Sprintf("Prompt queued (%s).", o.Result.PromptID)
	}
}

// WarningPrompt is the question put to Confirm.
func WarningPrompt(warnings []string) string {
	return "Warnings:\n" + bulletList(warnings) + "\n\nRun anyway?"
}

func bulletList(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	return b.String()
}

// Queue compiles the current graph and submits it. Errors stop the run;
// warnings are put to confirm, and a nil confirm declines. On success the
// monitor, if any, is moved to the queued phase for the new prompt id.
func (s *Session) Queue(ctx context.Context, confirm Confirm) QueueOutcome {
	g := s.Graph()
	schemas := s.Schemas()

	ctx, span := s.tracer.Start(ctx, "session.queue")
	defer span.End()
	span.SetAttributes(
		attribute.Int("workflow.nodes", len(g.Nodes)),
		attribute.Int("workflow.edges", len(g.Edges)),
	)
	ctx = ctxlog.With(ctx, "client_id", s.clientID)
	logger := ctxlog.FromContext(ctx)

	compiled := prompt.Compile(g.Nodes, g.Edges, schemas)
	outcome := QueueOutcome{Errors: compiled.Errors, Warnings: compiled.Warnings}
	span.SetAttributes(
		attribute.Int("compile.errors", len(compiled.Errors)),
		attribute.Int("compile.warnings", len(compiled.Warnings)),
	)

	if compiled.Blocked() {
		outcome.Status = QueueBlocked
		span.SetStatus(codes.Error, "compile errors")
		logger.Info("Workflow not queued", "errors", len(compiled.Errors))
		return outcome
	}
	if compiled.NeedsConfirmation() && (confirm == nil || !confirm(compiled.Warnings)) {
		outcome.Status = QueueDeclined
		logger.Info("Workflow run declined", "warnings", len(compiled.Warnings))
		return outcome
	}

	if s.backend == nil {
		outcome.Status = QueueFailed
		outcome.Result = comfy.QueueResult{Message: "No backend configured."}
		span.SetStatus(codes.Error, outcome.Result.Message)
		return outcome
	}

	outcome.Result = s.backend.QueuePrompt(ctx, comfy.QueueRequest{
		Prompt:   compiled.Request,
		ClientID: s.clientID,
		Workflow: g,
	})
	if !outcome.Result.OK {
		outcome.Status = QueueFailed
		span.SetStatus(codes.Error, outcome.Result.Message)
		logger.Warn("Failed to queue workflow", "message", outcome.Result.Message)
		return outcome
	}

	outcome.Status = QueueSubmitted
	span.SetAttributes(attribute.String("prompt.id", outcome.Result.PromptID))
	if s.monitor != nil && outcome.Result.PromptID != "" {
		s.monitor.MarkQueued(outcome.Result.PromptID)
	}
	return outcome
}
