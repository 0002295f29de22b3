package event

import (
	"time"

	"github.com/yaoapp/kun/log"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/event/types"
)

// newTakeEntry builds a one-shot entry that delivers its first match to ch.
func newTakeEntry(predicate types.Predicate, ch chan<- *types.TakeResult) (*entry, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &entry{
		id:        id,
		predicate: predicate,
		pending:   make(map[*abort.Token]struct{}),
		once: func(ev *types.Event, current, original any) {
			ch <- &types.TakeResult{Event: ev, State: current, OriginalState: original}
		},
	}, nil
}

// resolve fires a take entry at most once and removes it in the same step.
func (m *Middleware) resolve(e *entry, ev *types.Event, current, original any) {
	if !e.fired.CompareAndSwap(false, true) {
		return
	}
	m.reg.removeEntry(e)
	e.once(ev, current, original)
}

// take waits for the next event matching predicate under tok.
//
// The waiter is registered before waiting starts, so an event dispatched
// between the call and the wait is not missed. It is removed on every exit
// path. A nil result with a nil error means the timeout elapsed first.
func (m *Middleware) take(tok *abort.Token, predicate types.Predicate, timeout time.Duration) (*types.TakeResult, error) {
	if err := abort.Validate(tok); err != nil {
		return nil, err
	}
	if predicate == nil {
		return nil, ErrNoMatcher
	}

	matched := make(chan *types.TakeResult, 1)
	e, err := newTakeEntry(predicate, matched)
	if err != nil {
		return nil, err
	}
	unsubscribe := m.reg.insert(e)
	defer unsubscribe()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-tok.Done():
		return nil, abort.Validate(tok)

	case res := <-matched:
		if err := abort.Validate(tok); err != nil {
			return nil, err
		}
		return res, nil

	case <-expired:
		log.Trace("listener middleware: take %s timed out after %s", e.id, timeout)
		if err := abort.Validate(tok); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// condition reports whether an event matching predicate arrived in time.
func (m *Middleware) condition(tok *abort.Token, predicate types.Predicate, timeout time.Duration) (bool, error) {
	res, err := m.take(tok, predicate, timeout)
	if err != nil {
		return false, err
	}
	return res != nil, nil
}
