// Package trace journals the events forwarded through a store and streams the
// journal to subscribers.
//
// A Recorder is installed as a store middleware. Placed after the listener
// middleware it sees only ordinary events, never listener control events.
package trace

import (
	"sync"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	eventTypes "github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/store"
)

// Recorder is an event journal for one store.
type Recorder struct {
	traceID string
	limit   int

	mu    sync.Mutex
	state recorderState
	subs  *subManager
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithID sets the trace id. By default a random UUID is used.
func WithID(id string) Option {
	return func(r *Recorder) {
		if id != "" {
			r.traceID = id
		}
	}
}

// WithLimit keeps at most n updates for replay. Zero keeps everything.
func WithLimit(n int) Option {
	return func(r *Recorder) {
		if n >= 0 {
			r.limit = n
		}
	}
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		traceID: uuid.NewString(),
		subs:    newSubManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the trace id.
func (r *Recorder) ID() string { return r.traceID }

var _ store.Middleware = (*Recorder)(nil).Middleware

// Middleware records every non-nil event after it has been forwarded, along
// with the host state at that point.
func (r *Recorder) Middleware(host eventTypes.Host, next eventTypes.Dispatcher) eventTypes.Dispatcher {
	return func(ev *eventTypes.Event) any {
		result := next(ev)
		if ev != nil {
			r.stateAppend(UpdateTypeEvent, ev, host.GetState())
		}
		return result
	}
}

// Updates returns the retained updates with Seq >= since.
func (r *Recorder) Updates(since int64) []*Update {
	return r.stateGetUpdates(since)
}

// Complete appends the final update. Subscriptions end after delivering it and
// later events are not recorded. Reports whether this call completed the trace.
func (r *Recorder) Complete() bool {
	_, ok := r.stateAppend(UpdateTypeComplete, nil, nil)
	if ok {
		log.Debug("[TRACE] %s: completed", r.traceID)
	}
	return ok
}

// Completed reports whether Complete has been called.
func (r *Recorder) Completed() bool {
	return r.stateIsCompleted()
}

// Close ends every live subscription and rejects new ones. The journal stays
// readable through Updates.
func (r *Recorder) Close() {
	if !r.stateMarkClosed() {
		return
	}
	n := r.subs.clear()
	log.Debug("[TRACE] %s: closed %d subscriptions", r.traceID, n)
}
