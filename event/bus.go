package event

import (
	"fmt"

	"github.com/yaoapp/listener/event/types"
)

// AddListenerEvent returns a control event that registers a listener when it
// reaches the middleware. The options are validated now and given a stable id
// if they have none; dispatching the event returns the types.Unsubscribe.
func AddListenerEvent(opts types.ListenerOptions) (*types.Event, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if opts.ID == "" {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		opts.ID = id
	}
	return &types.Event{Type: types.TypeAddListener, Payload: opts}, nil
}

// RemoveListenerEvent returns a control event that removes the registration
// matching opts (see Middleware.RemoveListener).
func RemoveListenerEvent(opts types.ListenerOptions) *types.Event {
	return &types.Event{Type: types.TypeRemoveListener, Payload: opts}
}

// ClearListenersEvent returns a control event that clears the registry.
func ClearListenersEvent() *types.Event {
	return &types.Event{Type: types.TypeClearListeners}
}

// controlOptions decodes the options carried by an add or remove control
// event. Both value and pointer payloads are accepted.
func controlOptions(ev *types.Event) (types.ListenerOptions, error) {
	var opts types.ListenerOptions
	if err := ev.Should(&opts); err != nil {
		return opts, fmt.Errorf("%w: %s: %w", ErrInvalidControlEvent, ev.Type, err)
	}
	return opts, nil
}

// Wrap is the dispatch interceptor. It handles control events itself and
// forwards every other event to next. After next returns, each registered
// predicate is evaluated against the event, the state after forwarding and
// the state before; matching listeners are started without waiting for them.
//
// The result of next is returned unchanged. For an add-listener control event
// the result is the types.Unsubscribe, or an error if the options are invalid.
func (m *Middleware) Wrap(host types.Host, next types.Dispatcher) types.Dispatcher {
	return func(ev *types.Event) any {
		if ev == nil {
			return next(ev)
		}

		switch ev.Type {
		case types.TypeAddListener:
			opts, err := controlOptions(ev)
			if err != nil {
				return err
			}
			unsubscribe, err := m.AddListener(opts)
			if err != nil {
				return err
			}
			return unsubscribe

		case types.TypeClearListeners:
			m.Clear()
			return nil

		case types.TypeRemoveListener:
			opts, err := controlOptions(ev)
			if err != nil {
				return err
			}
			m.RemoveListener(opts)
			return nil
		}

		original := host.GetState()
		result := next(ev)
		m.metrics.dispatched()

		if m.reg.len() == 0 {
			return result
		}

		current := host.GetState()
		for _, e := range m.reg.snapshot() {
			if !m.match(e, ev, current, original) {
				continue
			}
			if e.once != nil {
				m.resolve(e, ev, current, original)
				continue
			}
			m.notify(host, e, ev, original)
		}
		return result
	}
}

// match evaluates e's predicate. A panicking predicate counts as no match and
// is reported.
func (m *Middleware) match(e *entry, ev *types.Event, current, original any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			m.report(fmt.Errorf("%w: %v", ErrPredicatePanic, r), types.ErrorInfo{
				RaisedBy:   types.RaisedByPredicate,
				ListenerID: e.id,
			})
		}
	}()
	return e.predicate(ev, current, original)
}
