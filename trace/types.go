package trace

import (
	"errors"

	eventTypes "github.com/yaoapp/listener/event/types"
)

// ErrClosed is returned when subscribing to a closed recorder.
var ErrClosed = errors.New("trace: recorder closed")

// UpdateType tells what an Update records.
type UpdateType string

// Update types.
const (
	UpdateTypeEvent    UpdateType = "event"
	UpdateTypeComplete UpdateType = "complete"
)

// Update is one journal record. Seq starts at 1 and increases by one per
// update within a recorder.
type Update struct {
	Seq       int64
	Type      UpdateType
	TraceID   string
	Event     *eventTypes.Event // nil for UpdateTypeComplete
	State     any               // host state after the event was forwarded
	Timestamp int64             // unix milliseconds
}
