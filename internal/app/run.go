package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/session"
)

const (
	interruptTimeout = 5 * time.Second
	// followPollInterval bounds how long Queue waits to notice a finished run
	// whose final update was dropped by a slow subscriber.
	followPollInterval = 100 * time.Millisecond
)

// QueueOptions controls Queue.
type QueueOptions struct {
	// Confirm is asked about warnings. Nil declines any run with warnings.
	Confirm session.Confirm
	// Follow keeps Queue running until the backend finishes the prompt.
	Follow bool
	// OnState receives every state update while following.
	OnState func(execution.State)
}

// Queue submits the workflow file. With Follow set, the event stream is
// opened before submitting so no event of the run is missed, and cancelling
// ctx asks the backend to interrupt the run.
func (a *App) Queue(ctx context.Context, path string, opts QueueOptions) (session.QueueOutcome, error) {
	g, err := readWorkflow(path)
	if err != nil {
		return session.QueueOutcome{}, err
	}
	s, err := a.newSession(ctx)
	if err != nil {
		return session.QueueOutcome{}, err
	}
	s.Load(g)
	if issues := s.Validate(); len(issues) > 0 {
		return session.QueueOutcome{Status: session.QueueBlocked, Errors: edgeMessages(issues)}, nil
	}

	if !opts.Follow {
		return s.Queue(ctx, opts.Confirm), nil
	}

	conn, err := a.dialer.Dial(ctx, a.client.BaseURL(), a.clientID)
	if err != nil {
		return session.QueueOutcome{}, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := a.monitor.Subscribe(runCtx)
	runErr := make(chan error, 1)
	go func() { runErr <- a.monitor.Run(runCtx, conn) }()

	outcome := s.Queue(ctx, opts.Confirm)
	if outcome.Status != session.QueueSubmitted {
		return outcome, nil
	}
	a.startHealthCheckServer()

	promptID := outcome.Result.PromptID
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return outcome, nil
			}
			if opts.OnState != nil {
				opts.OnState(ev.Payload)
			}
		case <-ticker.C:
		case err := <-runErr:
			if ctx.Err() != nil {
				a.interruptActive(ctx)
				return outcome, ctx.Err()
			}
			return outcome, err
		case <-ctx.Done():
			a.interruptActive(ctx)
			return outcome, ctx.Err()
		}

		// Updates may be dropped for a slow subscriber, so the monitor's own
		// state decides when the run is over.
		if current := a.monitor.State(); current.PromptID == promptID && !current.Active() {
			if opts.OnState != nil {
				opts.OnState(current)
			}
			return outcome, nil
		}
	}
}

// interruptActive asks the backend to stop the tracked run after ctx was
// cancelled.
func (a *App) interruptActive(ctx context.Context) {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interruptTimeout)
	defer cancel()
	res, sent := a.monitor.Interrupt(ictx)
	logger := ctxlog.FromContext(ctx)
	switch {
	case !sent:
		logger.Debug("No run to interrupt.")
	case res.OK:
		logger.Info("Interrupt requested.", "prompt_id", a.monitor.State().PromptID)
	}
}

// Watch tracks the backend's event stream until ctx ends, dialing again
// after ReconnectDelay whenever the stream drops. onState may miss
// intermediate states when it is slower than the stream.
func (a *App) Watch(ctx context.Context, onState func(execution.State)) error {
	logger := ctxlog.FromContext(ctx)
	a.startHealthCheckServer()

	updates := a.monitor.Subscribe(ctx)
	go func() {
		for ev := range updates {
			if onState != nil {
				onState(ev.Payload)
			}
		}
	}()

	for {
		err := a.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Event stream lost, reconnecting.", "error", err, "delay", a.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.config.ReconnectDelay):
		}
	}
}

func (a *App) watchOnce(ctx context.Context) error {
	conn, err := a.dialer.Dial(ctx, a.client.BaseURL(), a.clientID)
	if err != nil {
		return err
	}
	defer conn.Close()
	ctxlog.FromContext(ctx).Info("Event stream connected.", "backend", a.client.BaseURL())
	err = a.monitor.Run(ctx, conn)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Interrupt asks the backend to stop promptID.
func (a *App) Interrupt(ctx context.Context, promptID string) comfy.InterruptResult {
	return a.client.Interrupt(ctx, promptID)
}

// OutputURLs returns the /view URLs of the images in s, ordered by node id.
func (a *App) OutputURLs(s execution.State) []string {
	var urls []string
	for _, id := range slices.Sorted(maps.Keys(s.NodeOutputs)) {
		for _, img := range s.NodeOutputs[id].Images {
			u, ok := comfy.ViewURL(a.client.BaseURL(), comfy.File(img), "", "")
			if ok {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
