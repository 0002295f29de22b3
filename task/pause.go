package task

import (
	"context"
	"fmt"
	"time"

	"github.com/yaoapp/listener/abort"
)

// WaitFunc is work awaited by Pause. ctx is cancelled when the pausing token
// aborts, so context-aware work can stop early; its result is discarded then.
type WaitFunc func(ctx context.Context) (any, error)

type waitResult struct {
	value any
	err   error
}

// Pause validates t, runs wait until it settles or t aborts, and validates t
// again. If t aborts first the cancellation error is returned and wait's
// eventual result is dropped.
func Pause(t *abort.Token, wait WaitFunc) (any, error) {
	return pause(t, []*abort.Token{t}, wait)
}

// Delay validates t, sleeps for d or until t aborts, and validates t again.
func Delay(t *abort.Token, d time.Duration) error {
	return delay(t, []*abort.Token{t}, d)
}

// pause races wait against race and validates every token in chain around it.
func pause(race *abort.Token, chain []*abort.Token, wait WaitFunc) (any, error) {
	if err := abort.Validate(chain...); err != nil {
		return nil, err
	}

	// Buffered so the goroutine can always deliver and exit after we stop listening.
	ch := make(chan waitResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- waitResult{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		v, err := wait(race.Context())
		ch <- waitResult{value: v, err: err}
	}()

	select {
	case res := <-ch:
		if err := abort.Validate(chain...); err != nil {
			return nil, err
		}
		return res.value, res.err
	case <-race.Done():
		return nil, abort.Validate(chain...)
	}
}

func delay(race *abort.Token, chain []*abort.Token, d time.Duration) error {
	if err := abort.Validate(chain...); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-race.Done():
	}
	return abort.Validate(chain...)
}
