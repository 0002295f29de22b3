package types

import (
	"time"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/task"
)

// Dispatcher forwards an event to the next pipeline stage and returns its result.
type Dispatcher func(ev *Event) any

// Host is the dispatch pipeline the middleware is installed in.
//
// GetState must be safe to call from any goroutine. Dispatch sends an event
// through the whole pipeline, including the middleware itself.
type Host interface {
	GetState() any
	Dispatch(ev *Event) any
}

// Listener reacts to matched events. Each match runs OnEvent on its own
// goroutine; returning a cancellation error is treated as a normal exit.
//
// Registrations are deduplicated by comparing Listener values, so use a
// pointer (or Func) to give each listener a stable identity.
type Listener interface {
	OnEvent(ev *Event, api API) error
}

type funcListener struct {
	fn func(ev *Event, api API) error
}

func (l *funcListener) OnEvent(ev *Event, api API) error { return l.fn(ev, api) }

// Func wraps a function as a Listener. Every call returns a distinct
// identity; keep the result to remove the listener later.
func Func(fn func(ev *Event, api API) error) Listener {
	return &funcListener{fn: fn}
}

// API is handed to every listener invocation.
//
// Take, Condition, Pause and Delay are suspension points: each validates the
// invocation's token before and after waiting. OriginalState may only be
// called before the first of them.
type API interface {
	// ID returns the listener entry id.
	ID() string

	// GetState returns the host's current state.
	GetState() any

	// OriginalState returns the state before the triggering event was forwarded.
	// It panics with ErrOriginalStateExpired after the first suspension point.
	OriginalState() any

	// Dispatch sends an event through the host pipeline.
	Dispatch(ev *Event) any

	// Take waits for the next event matching predicate. A timeout <= 0 waits
	// indefinitely; when the timeout elapses first the result is nil.
	Take(predicate Predicate, timeout time.Duration) (*TakeResult, error)

	// Condition is Take reduced to whether a match occurred.
	Condition(predicate Predicate, timeout time.Duration) (bool, error)

	// Pause waits for wait to settle, racing the invocation's token.
	Pause(wait task.WaitFunc) (any, error)

	// Delay sleeps for d, racing the invocation's token.
	Delay(d time.Duration) error

	// Signal returns the invocation's token.
	Signal() *abort.Token

	// Fork runs exec as a child task of this invocation.
	Fork(exec task.Executor) *task.Forked

	// Unsubscribe removes this listener's entry from the registry.
	Unsubscribe()

	// Subscribe re-adds this listener's entry if it was removed.
	Subscribe()

	// CancelActiveListeners aborts every other in-flight invocation of this entry.
	CancelActiveListeners()

	// Extra returns the value configured with WithExtra.
	Extra() any
}
