package types

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/cast"
)

// Event is one unit flowing through the host dispatch pipeline.
type Event struct {
	Type    string // Event type, e.g. "counter/inc"
	Payload any    // Business data; concrete type is determined by event type
}

// ErrPayloadMismatch is returned by Should when the payload cannot be copied
// into the target.
var ErrPayloadMismatch = errors.New("event: payload does not fit target")

// Should copies the payload into the value target points to. A pointer
// payload is dereferenced first, so T and *T payloads both decode into a *T
// target.
func (ev *Event) Should(target any) error {
	dst := reflect.ValueOf(target)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("%w: target %T is not a non-nil pointer", ErrPayloadMismatch, target)
	}

	src := reflect.ValueOf(ev.Payload)
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return fmt.Errorf("%w: nil %T payload", ErrPayloadMismatch, ev.Payload)
		}
		src = src.Elem()
	}
	if !src.IsValid() {
		return fmt.Errorf("%w: no payload", ErrPayloadMismatch)
	}

	elem := dst.Elem()
	if !src.Type().AssignableTo(elem.Type()) {
		return fmt.Errorf("%w: %T into %s", ErrPayloadMismatch, ev.Payload, elem.Type())
	}
	elem.Set(src)
	return nil
}

// PayloadString coerces the payload to a string ("" when it cannot).
func (ev *Event) PayloadString() string {
	return cast.ToString(ev.Payload)
}

// PayloadInt coerces the payload to an int (0 when it cannot).
func (ev *Event) PayloadInt() int {
	return cast.ToInt(ev.Payload)
}

// PayloadMap coerces the payload to a string-keyed map (empty when it cannot).
func (ev *Event) PayloadMap() map[string]any {
	return cast.ToStringMap(ev.Payload)
}

// Creator builds events of one type and matches them. It is the
// counterpart of an action creator: Type and Match make it usable as a
// listener's match source.
type Creator struct {
	typ string
}

// NewCreator returns a Creator for the given type.
func NewCreator(typ string) Creator {
	return Creator{typ: typ}
}

// Type returns the event type this creator builds.
func (c Creator) Type() string { return c.typ }

// New returns an event of the creator's type with the given payload.
func (c Creator) New(payload any) *Event {
	return &Event{Type: c.typ, Payload: payload}
}

// Match reports whether ev has the creator's type.
func (c Creator) Match(ev *Event) bool {
	return ev != nil && ev.Type == c.typ
}

// Matchable is anything that names an event type and can match it.
type Matchable interface {
	Type() string
	Match(ev *Event) bool
}

// Matcher tests an event on its own.
type Matcher func(ev *Event) bool

// Predicate tests an event together with the state after it was forwarded
// (current) and the state before (original).
type Predicate func(ev *Event, current, original any) bool

// ListenerOptions describe one listener registration.
// Exactly one of Type, Creator, Matcher or Predicate selects which events
// the listener reacts to.
type ListenerOptions struct {
	ID        string    // Stable id; generated when empty
	Type      string    // Exact event type
	Creator   Matchable // Type and matcher taken from a creator
	Matcher   Matcher   // Event-only matcher
	Predicate Predicate // Full predicate over event and states
	Listener  Listener  // Callback; its identity is the dedup key
}

// Unsubscribe removes a listener registration.
type Unsubscribe func()

// RaisedBy tells which part of the middleware produced a reported error.
type RaisedBy string

// Error origins.
const (
	RaisedByListener  RaisedBy = "listener"
	RaisedByPredicate RaisedBy = "predicate"
)

// ErrorInfo accompanies every reported error.
type ErrorInfo struct {
	RaisedBy   RaisedBy
	ListenerID string
}

// ErrorHandler receives errors from predicates and listener bodies.
type ErrorHandler func(err error, info ErrorInfo)

// TakeResult is the event that satisfied a Take, with the states around it.
type TakeResult struct {
	Event         *Event
	State         any // State after the event was forwarded
	OriginalState any // State before the event was forwarded
}

// Control event types. The host must route these to the middleware unchanged.
const (
	TypeAddListener    = "listenerMiddleware/add"
	TypeRemoveListener = "listenerMiddleware/remove"
	TypeClearListeners = "listenerMiddleware/removeAll"
)

// DefaultNamespace is the metrics namespace used when none is configured.
const DefaultNamespace = "listener"
