package task

import (
	"time"

	"github.com/yaoapp/listener/abort"
)

// Executor is a child workflow started by Fork.
type Executor func(s *Scope) (any, error)

// Scope is the API handed to a forked executor. Its suspension primitives
// race the child token and validate the whole ancestor chain, so an abort of
// any ancestor is observed at the child's next resumption.
type Scope struct {
	chain []*abort.Token
	token *abort.Token
}

// Signal returns the child token.
func (s *Scope) Signal() *abort.Token { return s.token }

// Pause is Pause bound to the child token and its ancestors.
func (s *Scope) Pause(wait WaitFunc) (any, error) {
	return pause(s.token, s.chain, wait)
}

// Delay is Delay bound to the child token and its ancestors.
func (s *Scope) Delay(d time.Duration) error {
	return delay(s.token, s.chain, d)
}

// Fork starts a grandchild that shares this scope's ancestors.
func (s *Scope) Fork(exec Executor) *Forked {
	return forkChain(s.chain, exec)
}

// Forked is a handle to a running child workflow.
type Forked struct {
	parents []*abort.Token
	token   *abort.Token
	done    chan struct{}
	outcome Outcome
}

// Fork runs exec on a new goroutine under a new child token of parent.
//
// The child validates parent and child tokens before and after exec. Failures
// of the child are only visible through Result; they never propagate to the
// parent on their own.
func Fork(parent *abort.Token, exec Executor) *Forked {
	return forkChain([]*abort.Token{parent}, exec)
}

func forkChain(parents []*abort.Token, exec Executor) *Forked {
	if exec == nil {
		panic("task: Fork requires a non-nil executor")
	}

	child := abort.New()
	chain := make([]*abort.Token, 0, len(parents)+1)
	chain = append(chain, parents...)
	chain = append(chain, child)

	f := &Forked{
		parents: parents,
		token:   child,
		done:    make(chan struct{}),
	}
	scope := &Scope{chain: chain, token: child}

	go func() {
		defer close(f.done)
		f.outcome = Run(func() (any, error) {
			if err := abort.Validate(chain...); err != nil {
				return nil, err
			}
			value, err := exec(scope)
			if err != nil {
				return nil, err
			}
			if err := abort.Validate(chain...); err != nil {
				return nil, err
			}
			return value, nil
		}, func() {
			child.Abort(abort.ReasonTaskCompleted)
		})
	}()

	return f
}

// Signal returns the child token.
func (f *Forked) Signal() *abort.Token { return f.token }

// Done is closed once the child has settled.
func (f *Forked) Done() <-chan struct{} { return f.done }

// Cancel aborts the child token. The child observes it at its next
// suspension point or validity check.
func (f *Forked) Cancel() {
	f.token.Abort(abort.ReasonTaskCancelled)
}

// Result waits for the child's outcome, racing the direct parent token.
// If any ancestor is aborted, before or while waiting, the result is
// StatusCancelled even when the child itself completed.
func (f *Forked) Result() Outcome {
	if err := abort.Validate(f.parents...); err != nil {
		return Outcome{Status: StatusCancelled, Err: err}
	}

	select {
	case <-f.done:
	case <-f.parents[len(f.parents)-1].Done():
	}

	if err := abort.Validate(f.parents...); err != nil {
		return Outcome{Status: StatusCancelled, Err: err}
	}
	return f.outcome
}

// Wait blocks until the child settles and returns its own outcome, without
// regard to the parent tokens.
func (f *Forked) Wait() Outcome {
	<-f.done
	return f.outcome
}
