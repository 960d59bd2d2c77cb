package execution

import (
	"maps"
	"time"
)

const defaultErrorMessage = "Execution error"

// Reduce applies e to s and returns the resulting state. s is never modified.
// Unknown events return s unchanged.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case Queued:
		if ev.PromptID == "" {
			return s
		}
		return s.reset(PhaseQueued, ev.PromptID)

	case Status:
		s.QueueRemaining = ev.QueueRemaining
		s.QueueKnown = true
		return s

	case ExecutionStart:
		next := s.reset(PhaseRunning, ev.PromptID)
		next.StartedAt = ev.Timestamp
		return next

	case ExecutionCached:
		if len(ev.Nodes) == 0 {
			return s
		}
		statuses := clone(s.NodeStatuses)
		for _, raw := range ev.Nodes {
			if id := s.resolve(raw); id != "" {
				statuses[id] = StatusCached
			}
		}
		s.NodeStatuses = statuses
		return s

	case Executing:
		if ev.Node == "" {
			s.Phase = PhaseIdle
			s.CurrentNodeID = ""
			s.StartedAt = time.Time{}
			return s
		}
		s = s.alias(ev.Node, ev.DisplayNode)
		id := s.resolve(ev.Node)
		s.Phase = PhaseRunning
		s.CurrentNodeID = id
		s.NodeStatuses = with(s.NodeStatuses, id, StatusRunning)
		return s

	case Executed:
		if ev.Node == "" {
			return s
		}
		s = s.alias(ev.Node, ev.DisplayNode)
		id := s.resolve(ev.Node)
		s.NodeStatuses = with(s.NodeStatuses, id, mergeStatus(s.NodeStatuses[id], StatusCompleted))
		if ev.Output != nil {
			s.NodeOutputs = with(s.NodeOutputs, id, *ev.Output)
		} else if _, ok := s.NodeOutputs[id]; ok {
			s.NodeOutputs = without(s.NodeOutputs, id)
		}
		return s

	case ExecutionError:
		s.Phase = PhaseError
		s.CurrentNodeID = ""
		if id := s.resolve(ev.Node); id != "" {
			msg := ev.Message
			if msg == "" {
				msg = defaultErrorMessage
			}
			s.NodeStatuses = with(s.NodeStatuses, id, StatusError)
			s.NodeErrors = with(s.NodeErrors, id, msg)
		}
		return s

	case ExecutionInterrupted:
		s.Phase = PhaseInterrupted
		s.CurrentNodeID = ""
		if id := s.resolve(ev.Node); id != "" {
			s.NodeStatuses = with(s.NodeStatuses, id, StatusInterrupted)
		}
		return s

	case ExecutionSuccess:
		s.Phase = PhaseIdle
		s.CurrentNodeID = ""
		s.StartedAt = time.Time{}
		return s

	case Progress:
		id := s.resolve(ev.Node)
		if id == "" {
			return s
		}
		s.NodeProgress = with(s.NodeProgress, id, NodeProgress{Value: ev.Value, Max: ev.Max})
		return s

	case ProgressState:
		if len(ev.Nodes) == 0 {
			return s
		}
		statuses := clone(s.NodeStatuses)
		progress := clone(s.NodeProgress)
		for _, n := range ev.Nodes {
			if n.NodeID == "" {
				continue
			}
			s = s.alias(n.NodeID, n.DisplayNodeID)
			id := s.resolve(n.NodeID)
			if n.HasProgress {
				progress[id] = NodeProgress{Value: n.Value, Max: n.Max}
			}
			if mapped, ok := mapProgressState(n.State); ok {
				statuses[id] = mergeStatus(statuses[id], mapped)
			}
		}
		s.NodeStatuses = statuses
		s.NodeProgress = progress
		return s

	default:
		return s
	}
}

// mergeStatus combines a node's current status with a new one. Cached is not
// downgraded to completed, and error or interrupted always stay.
func mergeStatus(current, next NodeStatus) NodeStatus {
	if current == StatusCached && next == StatusCompleted {
		return current
	}
	if current == StatusError || current == StatusInterrupted {
		return current
	}
	return next
}

func mapProgressState(state string) (NodeStatus, bool) {
	switch state {
	case "running":
		return StatusRunning, true
	case "finished":
		return StatusCompleted, true
	case "error":
		return StatusError, true
	default:
		return "", false
	}
}

// alias records raw -> display when the event carries both ids.
func (s State) alias(raw, display string) State {
	if raw == "" || display == "" || s.Aliases[raw] == display {
		return s
	}
	s.Aliases = with(s.Aliases, raw, display)
	return s
}

// resolve maps a raw backend id to the id used for display.
func (s State) resolve(raw string) string {
	if raw == "" {
		return ""
	}
	if display, ok := s.Aliases[raw]; ok {
		return display
	}
	return raw
}

// clone copies m. The copy is never nil, so the zero State can be reduced.
func clone[V any](m map[string]V) map[string]V {
	next := make(map[string]V, len(m)+1)
	maps.Copy(next, m)
	return next
}

// with returns a copy of m with key set to v.
func with[V any](m map[string]V, key string, v V) map[string]V {
	next := clone(m)
	next[key] = v
	return next
}

// without returns a copy of m without key.
func without[V any](m map[string]V, key string) map[string]V {
	next := clone(m)
	delete(next, key)
	return next
}
