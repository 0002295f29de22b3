// Package task runs cancellable workflows under abort tokens.
//
// Run settles a workflow into exactly one Outcome. Pause and Delay are the
// suspension primitives: each validates its tokens, waits for the awaited work
// or the token's abort (whichever comes first), and validates again. Fork runs
// a child workflow on its own goroutine under a fresh token derived from the
// caller's.
package task

import (
	"errors"
	"fmt"

	"github.com/yaoapp/listener/abort"
)

// ErrPanic wraps values recovered from a panicking workflow.
var ErrPanic = errors.New("task: workflow panicked")

// Status is the terminal state of a workflow.
type Status string

// Outcome statuses.
const (
	StatusOK        Status = "ok"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Outcome is the settled result of a workflow.
// Value is set for StatusOK, Err for StatusRejected. For StatusCancelled, Err
// holds the *abort.Error that ended the workflow.
type Outcome struct {
	Status Status
	Value  any
	Err    error
}

// Workflow is a unit of work run by Run.
type Workflow func() (any, error)

// Run executes wf to completion and converts the result into an Outcome:
// cancellation errors become StatusCancelled, other errors and panics
// StatusRejected. onSettle, if non-nil, is called exactly once after the
// outcome is known, whatever it is.
func Run(wf Workflow, onSettle func()) (out Outcome) {
	if onSettle != nil {
		defer onSettle()
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: StatusRejected, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()

	value, err := wf()
	switch {
	case err == nil:
		return Outcome{Status: StatusOK, Value: value}
	case abort.IsAborted(err):
		return Outcome{Status: StatusCancelled, Err: err}
	default:
		return Outcome{Status: StatusRejected, Err: err}
	}
}
