package trace

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// subscriptionBuffer is the channel capacity of a subscription.
const subscriptionBuffer = 1000

// subManager manages live subscribers. Delivery is non-blocking: a
// subscriber whose channel is full misses the update.
type subManager struct {
	mu      sync.RWMutex
	nextID  atomic.Uint64
	entries map[string]chan *Update
	closed  bool
}

func newSubManager() *subManager {
	return &subManager{
		entries: make(map[string]chan *Update),
	}
}

func (sm *subManager) subscribe(ch chan *Update) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return "", ErrClosed
	}
	id := fmt.Sprintf("sub-%d", sm.nextID.Add(1))
	sm.entries[id] = ch
	return id, nil
}

// unsubscribe removes a subscriber and closes its channel.
func (sm *subManager) unsubscribe(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if ch, ok := sm.entries[id]; ok {
		delete(sm.entries, id)
		close(ch)
	}
}

func (sm *subManager) notify(update *Update) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, ch := range sm.entries {
		select {
		case ch <- update:
		default:
		}
	}
}

// clear closes every subscriber channel and rejects later subscriptions.
func (sm *subManager) clear() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := len(sm.entries)
	for id, ch := range sm.entries {
		delete(sm.entries, id)
		close(ch)
	}
	sm.closed = true
	return n
}

// Subscribe streams the journal from the beginning: retained history first,
// then live updates. The stream ends after the complete update, on Close, or
// when cancel is called; the channel is then closed.
func (r *Recorder) Subscribe() (<-chan *Update, func(), error) {
	return r.subscribe(1)
}

// SubscribeFrom is Subscribe starting at the update with Seq >= since.
func (r *Recorder) SubscribeFrom(since int64) (<-chan *Update, func(), error) {
	return r.subscribe(since)
}

// subscribe registers the live subscriber BEFORE reading history so no update
// recorded in between is missed. Updates seen in both are dropped by Seq.
func (r *Recorder) subscribe(since int64) (<-chan *Update, func(), error) {
	if r.stateIsClosed() {
		return nil, nil, ErrClosed
	}

	liveCh := make(chan *Update, subscriptionBuffer)
	subID, err := r.subs.subscribe(liveCh)
	if err != nil {
		return nil, nil, err
	}

	historical := r.stateGetUpdates(since)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			r.subs.unsubscribe(subID)
		})
	}

	out := make(chan *Update, subscriptionBuffer)
	go func() {
		defer close(out)
		defer cancel()

		var last int64
		send := func(update *Update) bool {
			select {
			case out <- update:
				last = update.Seq
				return update.Type != UpdateTypeComplete
			case <-done:
				return false
			}
		}

		for _, update := range historical {
			if !send(update) {
				return
			}
		}

		for {
			select {
			case update, ok := <-liveCh:
				if !ok {
					return
				}
				if update.Seq < since || update.Seq <= last {
					continue
				}
				if !send(update) {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return out, cancel, nil
}
