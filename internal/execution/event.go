package execution

import "time"

// Event is one input to Reduce.
type Event interface {
	// Type returns the wire name of the event.
	Type() string
}

// Queued is raised locally right after a run was accepted by the backend.
type Queued struct {
	PromptID string
}

// Status reports the backend queue depth.
type Status struct {
	QueueRemaining int
}

// ExecutionStart marks the start of a run.
type ExecutionStart struct {
	PromptID  string
	Timestamp time.Time
}

// ExecutionCached lists nodes whose results were reused.
type ExecutionCached struct {
	Nodes []string
}

// Executing reports the node now running. An empty Node means the run is
// over.
type Executing struct {
	Node        string
	DisplayNode string
}

// Executed reports a finished node and what it produced.
type Executed struct {
	Node        string
	DisplayNode string
	// Output is nil when the node produced no files.
	Output *NodeOutput
}

// ExecutionError reports a failed run.
type ExecutionError struct {
	Node    string
	Message string
}

// ExecutionInterrupted reports a run stopped on request.
type ExecutionInterrupted struct {
	Node string
}

// ExecutionSuccess reports a run that finished without errors.
type ExecutionSuccess struct {
	PromptID string
}

// Progress reports the progress of one node.
type Progress struct {
	Node  string
	Value float64
	Max   float64
}

// ProgressStateNode is one entry of a ProgressState event.
type ProgressStateNode struct {
	NodeID        string
	DisplayNodeID string
	// State is the backend's state name: running, finished or error.
	State       string
	HasProgress bool
	Value       float64
	Max         float64
}

// ProgressState is the bulk progress report.
type ProgressState struct {
	Nodes []ProgressStateNode
}

func (Queued) Type() string               { return "queued" }
func (Status) Type() string               { return "status" }
func (ExecutionStart) Type() string       { return "execution_start" }
func (ExecutionCached) Type() string      { return "execution_cached" }
func (Executing) Type() string            { return "executing" }
func (Executed) Type() string             { return "executed" }
func (ExecutionError) Type() string       { return "execution_error" }
func (ExecutionInterrupted) Type() string { return "execution_interrupted" }
func (ExecutionSuccess) Type() string     { return "execution_success" }
func (Progress) Type() string             { return "progress" }
func (ProgressState) Type() string        { return "progress_state" }
