// Package event implements a listener middleware for an event dispatch
// pipeline.
//
// Listeners are registered with a type, creator, matcher or predicate and run
// on their own goroutine whenever an event forwarded through the pipeline
// matches. Each invocation gets an API to wait for further events (Take,
// Condition), suspend (Pause, Delay), fork child tasks and manage its own
// registration, all governed by a per-invocation abort token.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/listener/event/types"
)

// Sentinel errors.
var (
	ErrNoMatcher            = errors.New("event: listener needs one of Type, Creator, Matcher or Predicate")
	ErrMultipleMatchers     = errors.New("event: listener accepts only one of Type, Creator, Matcher or Predicate")
	ErrNoListener           = errors.New("event: listener callback is required")
	ErrDuplicateID          = errors.New("event: listener id is already registered")
	ErrNotInserted          = errors.New("event: listener entry was never inserted")
	ErrOriginalStateExpired = errors.New("event: OriginalState can only be called before the first suspension point")
	ErrPredicatePanic       = errors.New("event: predicate panicked")
	ErrInvalidControlEvent  = errors.New("event: malformed control event payload")
)

// Middleware holds the listener registry and the configuration shared by
// every listener invocation.
type Middleware struct {
	reg     *registry
	extra   any
	onError types.ErrorHandler
	metrics *metrics
	wg      sync.WaitGroup // in-flight listener invocations
}

// New creates a Middleware. Without options errors are logged through kun/log
// and listeners receive a nil Extra.
func New(opts ...Option) *Middleware {
	m := &Middleware{
		reg:     newRegistry(),
		onError: logError,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reg.onChange = m.metrics.setEntries
	return m
}

// AddListener registers a listener and returns the function that removes it.
// Adding a listener that is already registered returns the existing
// registration's unsubscribe function. An explicit ID used by a different
// listener is rejected with ErrDuplicateID.
func (m *Middleware) AddListener(opts types.ListenerOptions) (types.Unsubscribe, error) {
	return m.reg.add(opts)
}

// RemoveListener removes the registration whose listener and type match opts.
// Registrations made with a Matcher or Predicate are matched by listener only.
// Reports whether a registration was removed.
func (m *Middleware) RemoveListener(opts types.ListenerOptions) bool {
	return m.reg.removeMatching(typeKey(opts), opts.Listener)
}

// Clear aborts every in-flight invocation and then removes every
// registration. Abort subscribers still observe the registrations.
func (m *Middleware) Clear() {
	n := m.reg.clear()
	log.Debug("listener middleware: cleared %d listeners", n)
}

// Len returns the number of registrations, including pending Take waiters.
func (m *Middleware) Len() int {
	return m.reg.len()
}

// Stop clears the registry and waits for in-flight invocations to settle.
// Dispatch through the middleware should have ceased before Stop is called.
func (m *Middleware) Stop(ctx context.Context) error {
	m.Clear()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log.Warn("listener middleware: stop interrupted with invocations still running: %v", ctx.Err())
		return ctx.Err()
	}
}
