package execution

import "time"

// Phase is the coarse state of the current run.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseQueued      Phase = "queued"
	PhaseRunning     Phase = "running"
	PhaseError       Phase = "error"
	PhaseInterrupted Phase = "interrupted"
)

// NodeStatus is the per-node state within a run.
type NodeStatus string

const (
	StatusRunning     NodeStatus = "running"
	StatusCached      NodeStatus = "cached"
	StatusCompleted   NodeStatus = "completed"
	StatusError       NodeStatus = "error"
	StatusInterrupted NodeStatus = "interrupted"
)

// NodeProgress is a value/max pair reported while a node runs.
type NodeProgress struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

// FileOutput is a file produced by a node.
type FileOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder,omitempty"`
	Type      string `json:"type,omitempty"`
}

// NodeOutput lists the files a node produced.
type NodeOutput struct {
	Images  []FileOutput `json:"images,omitempty"`
	Latents []FileOutput `json:"latents,omitempty"`
}

// State is a snapshot of the run being tracked. Values are shared between
// snapshots; callers must treat every map as read-only.
type State struct {
	Phase         Phase  `json:"phase"`
	PromptID      string `json:"promptId,omitempty"`
	CurrentNodeID string `json:"currentNodeId,omitempty"`
	// QueueRemaining is meaningful only when QueueKnown is set.
	QueueRemaining int       `json:"queueRemaining"`
	QueueKnown     bool      `json:"queueKnown"`
	StartedAt      time.Time `json:"startedAt,omitzero"`

	NodeStatuses map[string]NodeStatus   `json:"nodeStatuses"`
	NodeProgress map[string]NodeProgress `json:"nodeProgress"`
	NodeErrors   map[string]string       `json:"nodeErrors"`
	NodeOutputs  map[string]NodeOutput   `json:"nodeOutputs"`

	// Aliases maps raw backend node ids to the ids shown to the user. It is
	// scoped to the current run.
	Aliases map[string]string `json:"-"`
}

// Empty returns the idle baseline.
func Empty() State {
	return State{
		Phase:        PhaseIdle,
		NodeStatuses: map[string]NodeStatus{},
		NodeProgress: map[string]NodeProgress{},
		NodeErrors:   map[string]string{},
		NodeOutputs:  map[string]NodeOutput{},
		Aliases:      map[string]string{},
	}
}

// reset returns the baseline for a new run, keeping only the queue depth.
func (s State) reset(phase Phase, promptID string) State {
	next := Empty()
	next.Phase = phase
	next.PromptID = promptID
	next.QueueRemaining = s.QueueRemaining
	next.QueueKnown = s.QueueKnown
	return next
}

// Active reports whether a run is queued or executing.
func (s State) Active() bool {
	return s.Phase == PhaseQueued || s.Phase == PhaseRunning
}

// Counts tallies node statuses.
func (s State) Counts() map[NodeStatus]int {
	counts := make(map[NodeStatus]int, len(s.NodeStatuses))
	for _, st := range s.NodeStatuses {
		counts[st]++
	}
	return counts
}
