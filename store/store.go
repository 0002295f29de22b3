// Package store is a minimal state container with a middleware pipeline.
//
// It is the host the listener middleware plugs into: a reducer folds events
// into state, and middlewares wrap the dispatch function in the order given.
package store

import (
	"sync"

	"github.com/yaoapp/listener/event/types"
)

// Reducer returns the state that results from applying ev to state.
type Reducer func(state any, ev *types.Event) any

// Middleware wraps the next dispatch stage.
type Middleware func(host types.Host, next types.Dispatcher) types.Dispatcher

// Store holds state and routes events through its middlewares to the reducer.
type Store struct {
	mu       sync.RWMutex
	state    any
	reducer  Reducer
	dispatch types.Dispatcher
}

var _ types.Host = (*Store)(nil)

// New creates a store. The first middleware is outermost.
func New(reducer Reducer, initial any, mws ...Middleware) *Store {
	s := &Store{state: initial, reducer: reducer}

	var next types.Dispatcher = s.reduce
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](s, next)
	}
	s.dispatch = next
	return s
}

// GetState returns the current state.
func (s *Store) GetState() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch sends ev through the middleware chain.
func (s *Store) Dispatch(ev *types.Event) any {
	return s.dispatch(ev)
}

func (s *Store) reduce(ev *types.Event) any {
	if ev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reducer != nil {
		s.state = s.reducer(s.state, ev)
	}
	return ev
}
