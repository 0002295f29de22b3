package event_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/yaoapp/listener/event"
	"github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/store"
)

// ---------------------------------------------------------------------------
// Dispatch through an empty registry: the interceptor's fast path.
// ---------------------------------------------------------------------------

func BenchmarkDispatch_NoListeners(b *testing.B) {
	m := event.New()
	s := store.New(counter, 0, m.Wrap)
	ev := &types.Event{Type: "inc"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Dispatch(ev)
	}
}

// ---------------------------------------------------------------------------
// Dispatch with N registered listeners, one of which matches.
// ---------------------------------------------------------------------------

func BenchmarkDispatch_Listeners(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			m := event.New()
			s := store.New(counter, 0, m.Wrap)

			var received atomic.Int64
			for i := 0; i < n; i++ {
				typ := fmt.Sprintf("other.%d", i)
				if i == 0 {
					typ = "inc"
				}
				_, err := m.AddListener(types.ListenerOptions{
					Type: typ,
					Listener: types.Func(func(ev *types.Event, api types.API) error {
						received.Add(1)
						return nil
					}),
				})
				if err != nil {
					b.Fatal(err)
				}
			}

			ev := &types.Event{Type: "inc"}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				s.Dispatch(ev)
			}
			b.StopTimer()

			_ = m.Stop(context.Background())
			if got := received.Load(); got != int64(b.N) {
				b.Fatalf("received %d of %d", got, b.N)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Parallel dispatchers against one middleware.
// ---------------------------------------------------------------------------

func BenchmarkDispatch_Parallel(b *testing.B) {
	m := event.New()
	s := store.New(counter, 0, m.Wrap)
	_, err := m.AddListener(types.ListenerOptions{Type: "inc", Listener: noop()})
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ev := &types.Event{Type: "inc"}
		for pb.Next() {
			s.Dispatch(ev)
		}
	})
	b.StopTimer()
	_ = m.Stop(context.Background())
}
