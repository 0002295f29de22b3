package event

import (
	"time"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/task"
)

// notify starts one invocation of e's listener on its own goroutine.
//
// The invocation's token joins e's pending set before the goroutine starts,
// so Clear and CancelActiveListeners see it immediately. On settlement the
// token is aborted (marking it complete) and leaves the pending set.
// Cancellation errors are expected exits; any other failure is reported.
func (m *Middleware) notify(host types.Host, e *entry, ev *types.Event, original any) {
	tok := abort.New()
	m.reg.track(e, tok)

	inv := &invocation{
		m:        m,
		host:     host,
		entry:    e,
		token:    tok,
		original: original,
	}
	inv.syncPhase.Store(true)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		start := time.Now()
		out := task.Run(func() (any, error) {
			return nil, e.listener.OnEvent(ev, inv)
		}, func() {
			tok.Abort(abort.ReasonListenerCompleted)
			m.reg.untrack(e, tok)
		})

		m.metrics.settled(out.Status, time.Since(start))
		if out.Status == task.StatusRejected {
			m.report(out.Err, types.ErrorInfo{
				RaisedBy:   types.RaisedByListener,
				ListenerID: e.id,
			})
		}
	}()
}
