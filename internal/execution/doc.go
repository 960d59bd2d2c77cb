// Package execution tracks the progress of submitted runs.
//
// State is an immutable value. Reduce applies one Event and returns a new
// State; maps are copied before they are written, so a State handed to a
// reader never changes under it. Monitor owns the current State, feeds it
// with frames read from the backend's event stream and publishes every
// transition.
package execution
