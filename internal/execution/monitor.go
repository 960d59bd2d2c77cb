package execution

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/pubsub"
)

// Source yields raw frames from the event stream.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Interrupter asks the backend to stop a run.
type Interrupter interface {
	Interrupt(ctx context.Context, promptID string) comfy.InterruptResult
}

// Monitor owns the current State. Transitions are applied by one goroutine at
// a time; readers load the latest State without locking.
type Monitor struct {
	state       atomic.Pointer[State]
	broker      *pubsub.Broker[State]
	interrupter Interrupter
	now         func() time.Time
}

// MonitorOption customizes a Monitor.
type MonitorOption func(*Monitor)

// WithClock overrides the time source used for start times.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor starts from the idle baseline. interrupter may be nil, in which
// case Interrupt always fails.
func NewMonitor(interrupter Interrupter, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		broker:      pubsub.NewBroker[State](),
		interrupter: interrupter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	initial := Empty()
	m.state.Store(&initial)
	return m
}

// State returns the latest snapshot.
func (m *Monitor) State() State {
	return *m.state.Load()
}

// Subscribe streams every new State until ctx ends.
func (m *Monitor) Subscribe(ctx context.Context) <-chan pubsub.Event[State] {
	return m.broker.Subscribe(ctx)
}

// Close stops all subscriptions.
func (m *Monitor) Close() {
	m.broker.Close()
}

// Apply reduces e into the current state, publishes the result and returns it.
func (m *Monitor) Apply(e Event) State {
	for {
		current := m.state.Load()
		next := Reduce(*current, e)
		if m.state.CompareAndSwap(current, &next) {
			m.broker.Publish(pubsub.EventType(e.Type()), next)
			return next
		}
	}
}

// MarkQueued resets the state for a run the backend just accepted.
func (m *Monitor) MarkQueued(promptID string) State {
	return m.Apply(Queued{PromptID: promptID})
}

// Run reads frames from src and applies them in order until ctx ends or the
// source fails. Malformed and unknown frames are skipped.
func (m *Monitor) Run(ctx context.Context, src Source) error {
	logger := ctxlog.FromContext(ctx)
	for {
		data, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream: %w", err)
		}
		ev, ok := DecodeFrame(data, m.now)
		if !ok {
			logger.Debug("Ignoring event frame", "size", len(data))
			continue
		}
		next := m.Apply(ev)
		logger.Debug("Applied event", "type", ev.Type(), "phase", next.Phase, "node", next.CurrentNodeID)
	}
}

// Interrupt asks the backend to stop the active run. It reports false without
// contacting the backend when no run id is known. The phase is left alone;
// it changes when the backend confirms with an event.
func (m *Monitor) Interrupt(ctx context.Context) (comfy.InterruptResult, bool) {
	promptID := m.State().PromptID
	if promptID == "" {
		return comfy.InterruptResult{}, false
	}
	if m.interrupter == nil {
		return comfy.InterruptResult{Message: "No backend configured."}, true
	}
	res := m.interrupter.Interrupt(ctx, promptID)
	if !res.OK {
		msg := res.Message
		if msg == "" {
			msg = "Failed to interrupt execution."
		}
		ctxlog.FromContext(ctx).Warn(msg, "prompt_id", promptID)
		res.Message = msg
	}
	return res, true
}
