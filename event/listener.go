package event

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/yaoapp/kun/log"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/event/types"
)

// entry is one registration. predicate is the single canonical match test,
// resolved from whichever source the options supplied.
type entry struct {
	id        string
	typ       string // "" for Matcher and Predicate registrations
	predicate types.Predicate
	listener  types.Listener
	pending   map[*abort.Token]struct{}

	// unsubscribe is bound when the entry is first inserted. Guarded by registry.mu.
	unsubscribe func()

	// Take waiters are resolved inline during matching instead of running a listener.
	once  func(ev *types.Event, current, original any)
	fired atomic.Bool
}

func newID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("event: generate listener id: %w", err)
	}
	return id, nil
}

// validateOptions reports every problem with opts at once.
func validateOptions(opts types.ListenerOptions) error {
	var result *multierror.Error

	sources := 0
	if opts.Type != "" {
		sources++
	}
	if opts.Creator != nil {
		sources++
	}
	if opts.Matcher != nil {
		sources++
	}
	if opts.Predicate != nil {
		sources++
	}

	switch {
	case sources == 0:
		result = multierror.Append(result, ErrNoMatcher)
	case sources > 1:
		result = multierror.Append(result, ErrMultipleMatchers)
	}
	if opts.Listener == nil {
		result = multierror.Append(result, ErrNoListener)
	}
	return result.ErrorOrNil()
}

func newEntry(opts types.ListenerOptions) (*entry, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		var err error
		if id, err = newID(); err != nil {
			return nil, err
		}
	}

	e := &entry{
		id:       id,
		listener: opts.Listener,
		pending:  make(map[*abort.Token]struct{}),
		unsubscribe: func() {
			panic(ErrNotInserted)
		},
	}

	switch {
	case opts.Type != "":
		typ := opts.Type
		e.typ = typ
		e.predicate = func(ev *types.Event, _, _ any) bool { return ev.Type == typ }
	case opts.Creator != nil:
		creator := opts.Creator
		e.typ = creator.Type()
		e.predicate = func(ev *types.Event, _, _ any) bool { return creator.Match(ev) }
	case opts.Matcher != nil:
		matcher := opts.Matcher
		e.predicate = func(ev *types.Event, _, _ any) bool { return matcher(ev) }
	default:
		e.predicate = opts.Predicate
	}
	return e, nil
}

// typeKey is the type a registration was made for, or "" for matcher and
// predicate registrations.
func typeKey(opts types.ListenerOptions) string {
	if opts.Type != "" {
		return opts.Type
	}
	if opts.Creator != nil {
		return opts.Creator.Type()
	}
	return ""
}

// sameListener compares listener identities. Values whose dynamic type is not
// comparable never match.
func sameListener(a, b types.Listener) (same bool) {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// registry stores entries by id and remembers insertion order.
type registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	onChange func(n int)
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*entry),
	}
}

// add reuses the entry registered for the same listener, or creates one.
// A new entry whose id is already taken is rejected with ErrDuplicateID.
func (r *registry) add(opts types.ListenerOptions) (types.Unsubscribe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(func(existing *entry) bool {
		return sameListener(existing.listener, opts.Listener)
	})
	if e == nil {
		var err error
		if e, err = newEntry(opts); err != nil {
			return nil, err
		}
		if _, taken := r.entries[e.id]; taken {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.id)
		}
	}
	return r.insertLocked(e), nil
}

// insert stores e (again) and returns its unsubscribe function.
func (r *registry) insert(e *entry) types.Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(e)
}

// insertLocked binds e's unsubscribe to e itself. An entry whose id has
// meanwhile been taken by another entry stays out of the registry; its unsubscribe never touches the other entry.
func (r *registry) insertLocked(e *entry) types.Unsubscribe {
	switch cur, ok := r.entries[e.id]; {
	case !ok:
		r.order = append(r.order, e.id)
		r.entries[e.id] = e
		r.changedLocked()
	case cur != e:
		log.Warn("listener middleware: id %s is taken, entry not re-inserted", e.id)
	}
	e.unsubscribe = func() { r.removeEntry(e) }
	return e.unsubscribe
}

// unsubscribe calls the entry's bound unsubscribe function; it panics with
// ErrNotInserted if the entry was never inserted.
func (r *registry) unsubscribe(e *entry) {
	r.mu.Lock()
	fn := e.unsubscribe
	r.mu.Unlock()
	fn()
}

// removeEntry deletes e if it is still the entry stored under its id. Safe to
// call repeatedly.
func (r *registry) removeEntry(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[e.id] != e {
		return false
	}
	return r.removeLocked(e.id)
}

func (r *registry) removeLocked(id string) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.changedLocked()
	return true
}

// removeMatching removes the entry registered for typ and listener.
func (r *registry) removeMatching(typ string, listener types.Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.findLocked(func(existing *entry) bool {
		return existing.typ == typ && sameListener(existing.listener, listener)
	})
	if e == nil {
		return false
	}
	return r.removeLocked(e.id)
}

// find returns the first entry satisfying fn, or nil.
func (r *registry) find(fn func(*entry) bool) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(fn)
}

func (r *registry) findLocked(fn func(*entry) bool) *entry {
	for _, id := range r.order {
		if e := r.entries[id]; fn(e) {
			return e
		}
	}
	return nil
}

// clear aborts every pending token and then removes the entries that held
// them. Tokens are aborted outside the lock, so abort subscribers may call
// back into the registry and still see the entries. Entries added while the
// tokens are being aborted survive. Returns the number of entries cleared.
func (r *registry) clear() int {
	r.mu.Lock()
	held := make(map[*entry]struct{}, len(r.entries))
	var tokens []*abort.Token
	for _, id := range r.order {
		e := r.entries[id]
		held[e] = struct{}{}
		for tok := range e.pending {
			tokens = append(tokens, tok)
		}
	}
	r.mu.Unlock()

	for _, tok := range tokens {
		tok.Abort(abort.ReasonListenerCancelled)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if _, ok := held[r.entries[id]]; ok {
			delete(r.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) != len(r.order) {
		r.order = kept
		r.changedLocked()
	}
	return len(held)
}

// snapshot returns the current entries in insertion order.
func (r *registry) snapshot() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// track adds tok to e's pending set.
func (r *registry) track(e *entry, tok *abort.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.pending[tok] = struct{}{}
}

// untrack removes tok from e's pending set.
func (r *registry) untrack(e *entry, tok *abort.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(e.pending, tok)
}

// others returns e's pending tokens except self.
func (r *registry) others(e *entry, self *abort.Token) []*abort.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*abort.Token, 0, len(e.pending))
	for tok := range e.pending {
		if tok != self {
			out = append(out, tok)
		}
	}
	return out
}

func (r *registry) changedLocked() {
	if r.onChange != nil {
		r.onChange(len(r.entries))
	}
}
