package trace

import (
	"time"

	"github.com/yaoapp/kun/log"

	eventTypes "github.com/yaoapp/listener/event/types"
)

// recorderState holds all mutable journal state.
// Protected by Recorder.mu; all access goes through state* methods which acquire the lock.
type recorderState struct {
	seq       int64
	updates   []*Update
	completed bool
	closed    bool
}

// stateAppend records an update and hands it to live subscribers while still
// holding the lock, so subscribers observe updates in sequence order.
func (r *Recorder) stateAppend(typ UpdateType, ev *eventTypes.Event, state any) (*Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.closed || r.state.completed {
		log.Trace("[TRACE] %s: dropping %s update after completion", r.traceID, typ)
		return nil, false
	}
	if typ == UpdateTypeComplete {
		r.state.completed = true
	}

	r.state.seq++
	update := &Update{
		Seq:       r.state.seq,
		Type:      typ,
		TraceID:   r.traceID,
		Event:     ev,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	}
	r.state.updates = append(r.state.updates, update)
	if r.limit > 0 && len(r.state.updates) > r.limit {
		r.state.updates = r.state.updates[len(r.state.updates)-r.limit:]
	}

	r.subs.notify(update)
	return update, true
}

// stateGetUpdates returns the retained updates with Seq >= since.
func (r *Recorder) stateGetUpdates(since int64) []*Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	filtered := make([]*Update, 0, len(r.state.updates))
	for _, update := range r.state.updates {
		if update.Seq >= since {
			filtered = append(filtered, update)
		}
	}
	return filtered
}

func (r *Recorder) stateIsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.completed
}

func (r *Recorder) stateIsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.closed
}

// stateMarkClosed reports whether this call closed the recorder.
func (r *Recorder) stateMarkClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.closed {
		return false
	}
	r.state.closed = true
	return true
}
