// Package abort provides one-way cancellation tokens.
//
// A Token starts out active and may be aborted exactly once, with a reason.
// Abort never propagates between tokens on its own: code that runs under a
// chain of tokens calls Validate at the start of a task and after every
// suspension point, so an abort is observed at the next check rather than
// interrupting work already in progress.
package abort

import (
	"context"
	"errors"
	"sync"
)

// Abort reasons.
const (
	ReasonListenerCancelled = "listener-cancelled"
	ReasonListenerCompleted = "listener-completed"
	ReasonTaskCancelled     = "task-cancelled"
	ReasonTaskCompleted     = "task-completed"
)

// ErrAborted matches every *Error via errors.Is.
var ErrAborted = errors.New("abort: task aborted")

// Error is returned by a failed validity check.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return "task aborted"
	}
	return "task aborted: " + e.Reason
}

// Is reports whether target is ErrAborted.
func (e *Error) Is(target error) bool {
	return target == ErrAborted
}

// IsAborted reports whether err is (or wraps) a cancellation error.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// Token is a one-way abort flag. The zero value is not usable; call New.
type Token struct {
	mu      sync.Mutex
	done    chan struct{}
	reason  string
	aborted bool
	subs    map[int]func(string)
	nextSub int
	ctx     context.Context
	cancel  context.CancelCauseFunc
}

// New returns an active token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Abort marks the token aborted with the given reason and notifies subscribers.
// Only the first call has any effect; it returns true when this call performed
// the transition.
func (t *Token) Abort(reason string) bool {
	t.mu.Lock()
	if t.aborted {
		t.mu.Unlock()
		return false
	}
	t.aborted = true
	t.reason = reason
	close(t.done)
	subs := make([]func(string), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.subs = nil
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel(&Error{Reason: reason})
	}
	for _, fn := range subs {
		fn(reason)
	}
	return true
}

// Aborted reports whether Abort has been called.
func (t *Token) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// Reason returns the abort reason, or "" while the token is active.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Done returns a channel that is closed when the token is aborted.
// It is never closed otherwise.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// OnAbort registers fn to run once when the token is aborted. If the token is
// already aborted fn runs immediately on the calling goroutine.
// The returned function removes the subscription.
func (t *Token) OnAbort(fn func(reason string)) (remove func()) {
	t.mu.Lock()
	if t.aborted {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return func() {}
	}
	if t.subs == nil {
		t.subs = make(map[int]func(string))
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Err returns the cancellation error if the token is aborted, nil otherwise.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.aborted {
		return nil
	}
	return &Error{Reason: t.reason}
}

// Context returns a context that is cancelled when the token is aborted.
// context.Cause reports the *Error for the abort.
func (t *Token) Context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil {
		t.ctx, t.cancel = context.WithCancelCause(context.Background())
		if t.aborted {
			t.cancel(&Error{Reason: t.reason})
		}
	}
	return t.ctx
}

// Validate is the validity check: it returns a cancellation error for the first
// aborted token, or nil when every token is active. Nil tokens are skipped.
func Validate(tokens ...*Token) error {
	for _, t := range tokens {
		if t == nil {
			continue
		}
		if err := t.Err(); err != nil {
			return err
		}
	}
	return nil
}
