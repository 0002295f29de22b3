package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/event"
	"github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/store"
)

// --- Shared helpers ---

func counter(state any, ev *types.Event) any {
	n, _ := state.(int)
	switch ev.Type {
	case "inc":
		return n + 1
	case "add":
		return n + ev.PayloadInt()
	}
	return n
}

// setup installs a fresh middleware in a counter store. The middleware is
// stopped when the test ends.
func setup(t *testing.T, opts ...event.Option) (*event.Middleware, *store.Store) {
	t.Helper()
	m := event.New(opts...)
	s := store.New(counter, 0, m.Wrap)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, m.Stop(ctx))
	})
	return m, s
}

type reported struct {
	err  error
	info types.ErrorInfo
}

// collect returns an error handler that records every report.
func collect() (types.ErrorHandler, <-chan reported) {
	ch := make(chan reported, 64)
	return func(err error, info types.ErrorInfo) {
		ch <- reported{err: err, info: info}
	}, ch
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func noop() types.Listener {
	return types.Func(func(ev *types.Event, api types.API) error { return nil })
}

// --- Registration ---

func TestAddListener_Validation(t *testing.T) {
	m, _ := setup(t)

	_, err := m.AddListener(types.ListenerOptions{Listener: noop()})
	assert.ErrorIs(t, err, event.ErrNoMatcher)

	_, err = m.AddListener(types.ListenerOptions{
		Type:     "inc",
		Matcher:  func(*types.Event) bool { return true },
		Listener: noop(),
	})
	assert.ErrorIs(t, err, event.ErrMultipleMatchers)

	_, err = m.AddListener(types.ListenerOptions{})
	assert.ErrorIs(t, err, event.ErrNoMatcher)
	assert.ErrorIs(t, err, event.ErrNoListener)

	assert.Equal(t, 0, m.Len())
}

func TestAddListener_Idempotent(t *testing.T) {
	m, _ := setup(t)
	l := noop()

	unsub1, err := m.AddListener(types.ListenerOptions{Type: "inc", Listener: l})
	require.NoError(t, err)
	unsub2, err := m.AddListener(types.ListenerOptions{Type: "inc", Listener: l})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	unsub2()
	assert.Equal(t, 0, m.Len())
	unsub1() // already removed
	assert.Equal(t, 0, m.Len())
}

func TestAddListener_DistinctFuncs(t *testing.T) {
	m, _ := setup(t)

	_, err := m.AddListener(types.ListenerOptions{Type: "inc", Listener: noop()})
	require.NoError(t, err)
	_, err = m.AddListener(types.ListenerOptions{Type: "inc", Listener: noop()})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestAddListener_DuplicateID(t *testing.T) {
	m, s := setup(t)

	calls := make(chan string, 4)
	record := func(name string) types.Listener {
		return types.Func(func(ev *types.Event, api types.API) error {
			calls <- name
			return nil
		})
	}

	unsubA, err := m.AddListener(types.ListenerOptions{ID: "x", Type: "a", Listener: record("a")})
	require.NoError(t, err)
	unsubB, err := m.AddListener(types.ListenerOptions{ID: "x", Type: "b", Listener: record("b")})
	assert.ErrorIs(t, err, event.ErrDuplicateID)
	assert.Nil(t, unsubB)
	assert.Equal(t, 1, m.Len())

	// The control event keeps the caller's id and is rejected the same way.
	add, err := event.AddListenerEvent(types.ListenerOptions{ID: "x", Type: "b", Listener: record("b")})
	require.NoError(t, err)
	res, ok := s.Dispatch(add).(error)
	require.True(t, ok)
	assert.ErrorIs(t, res, event.ErrDuplicateID)

	s.Dispatch(&types.Event{Type: "a"})
	assert.Equal(t, "a", receive(t, calls))
	s.Dispatch(&types.Event{Type: "b"})

	unsubA()
	assert.Equal(t, 0, m.Len())

	// The id is free again once its owner is gone.
	_, err = m.AddListener(types.ListenerOptions{ID: "x", Type: "b", Listener: record("b")})
	require.NoError(t, err)
	unsubA()
	assert.Equal(t, 1, m.Len())

	s.Dispatch(&types.Event{Type: "b"})
	assert.Equal(t, "b", receive(t, calls))
	require.NoError(t, m.Stop(context.Background()))
	assert.Len(t, calls, 0)
}

func TestRemoveListener(t *testing.T) {
	m, _ := setup(t)
	l := noop()
	creator := types.NewCreator("add")

	_, err := m.AddListener(types.ListenerOptions{Creator: creator, Listener: l})
	require.NoError(t, err)

	assert.False(t, m.RemoveListener(types.ListenerOptions{Type: "inc", Listener: l}))
	assert.False(t, m.RemoveListener(types.ListenerOptions{Type: "add", Listener: noop()}))
	assert.Equal(t, 1, m.Len())

	assert.True(t, m.RemoveListener(types.ListenerOptions{Type: "add", Listener: l}))
	assert.Equal(t, 0, m.Len())
}

func TestRemoveListener_Predicate(t *testing.T) {
	m, _ := setup(t)
	l := noop()

	_, err := m.AddListener(types.ListenerOptions{
		Predicate: func(*types.Event, any, any) bool { return true },
		Listener:  l,
	})
	require.NoError(t, err)

	assert.True(t, m.RemoveListener(types.ListenerOptions{
		Predicate: func(*types.Event, any, any) bool { return false },
		Listener:  l,
	}))
	assert.Equal(t, 0, m.Len())
}

// --- Clear / Stop ---

func TestClear_AbortsInFlight(t *testing.T) {
	m, s := setup(t)

	signals := make(chan *abort.Token, 1)
	errs := make(chan error, 1)
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			signals <- api.Signal()
			err := api.Delay(time.Hour)
			errs <- err
			return err
		}),
	})
	require.NoError(t, err)

	s.Dispatch(&types.Event{Type: "inc"})
	tok := receive(t, signals)
	assert.False(t, tok.Aborted())

	m.Clear()
	assert.Equal(t, 0, m.Len())

	err = receive(t, errs)
	assert.True(t, abort.IsAborted(err))
	assert.Equal(t, abort.ReasonListenerCancelled, tok.Reason())
}

func TestClear_AbortsBeforeRemoving(t *testing.T) {
	m, s := setup(t)

	sizes := make(chan int, 1)
	started := make(chan struct{}, 1)
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			api.Signal().OnAbort(func(string) { sizes <- m.Len() })
			started <- struct{}{}
			return api.Delay(time.Hour)
		}),
	})
	require.NoError(t, err)

	s.Dispatch(&types.Event{Type: "inc"})
	receive(t, started)

	m.Clear()
	assert.Equal(t, 1, receive(t, sizes))
	assert.Equal(t, 0, m.Len())
}

func TestClear_ThenDispatchIsPlain(t *testing.T) {
	m, s := setup(t)

	calls := make(chan struct{}, 4)
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			calls <- struct{}{}
			return nil
		}),
	})
	require.NoError(t, err)
	m.Clear()

	s.Dispatch(&types.Event{Type: "inc"})
	require.NoError(t, m.Stop(context.Background()))
	assert.Len(t, calls, 0)
	assert.Equal(t, 1, s.GetState())
}

func TestStop_WaitsForInvocations(t *testing.T) {
	m, s := setup(t)

	var mu sync.Mutex
	finished := false
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			finished = true
			mu.Unlock()
			return nil
		}),
	})
	require.NoError(t, err)

	s.Dispatch(&types.Event{Type: "inc"})
	require.NoError(t, m.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished)
}

func TestStop_ContextExpires(t *testing.T) {
	m, s := setup(t)

	release := make(chan struct{})
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			<-release // ignores its token
			return nil
		}),
	})
	require.NoError(t, err)

	s.Dispatch(&types.Event{Type: "inc"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = m.Stop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
}

func TestWithExtra(t *testing.T) {
	m, s := setup(t, event.WithExtra("deps"))

	extras := make(chan any, 1)
	_, err := m.AddListener(types.ListenerOptions{
		Type: "inc",
		Listener: types.Func(func(ev *types.Event, api types.API) error {
			extras <- api.Extra()
			return nil
		}),
	})
	require.NoError(t, err)

	s.Dispatch(&types.Event{Type: "inc"})
	assert.Equal(t, "deps", receive(t, extras))
}
