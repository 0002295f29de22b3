package event

import (
	"sync/atomic"
	"time"

	"github.com/yaoapp/listener/abort"
	"github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/task"
)

// invocation is the types.API for one run of a listener.
type invocation struct {
	m        *Middleware
	host     types.Host
	entry    *entry
	token    *abort.Token
	original any

	// syncPhase is true until the first suspension point.
	syncPhase atomic.Bool
}

var _ types.API = (*invocation)(nil)

func (inv *invocation) suspend() {
	inv.syncPhase.Store(false)
}

func (inv *invocation) ID() string { return inv.entry.id }

func (inv *invocation) GetState() any { return inv.host.GetState() }

func (inv *invocation) OriginalState() any {
	if !inv.syncPhase.Load() {
		panic(ErrOriginalStateExpired)
	}
	return inv.original
}

func (inv *invocation) Dispatch(ev *types.Event) any { return inv.host.Dispatch(ev) }

func (inv *invocation) Take(predicate types.Predicate, timeout time.Duration) (*types.TakeResult, error) {
	inv.suspend()
	return inv.m.take(inv.token, predicate, timeout)
}

func (inv *invocation) Condition(predicate types.Predicate, timeout time.Duration) (bool, error) {
	inv.suspend()
	return inv.m.condition(inv.token, predicate, timeout)
}

func (inv *invocation) Pause(wait task.WaitFunc) (any, error) {
	inv.suspend()
	return task.Pause(inv.token, wait)
}

func (inv *invocation) Delay(d time.Duration) error {
	inv.suspend()
	return task.Delay(inv.token, d)
}

func (inv *invocation) Signal() *abort.Token { return inv.token }

func (inv *invocation) Fork(exec task.Executor) *task.Forked {
	return task.Fork(inv.token, exec)
}

func (inv *invocation) Unsubscribe() {
	inv.m.reg.unsubscribe(inv.entry)
}

func (inv *invocation) Subscribe() {
	inv.m.reg.insert(inv.entry)
}

func (inv *invocation) CancelActiveListeners() {
	for _, tok := range inv.m.reg.others(inv.entry, inv.token) {
		tok.Abort(abort.ReasonListenerCancelled)
	}
}

func (inv *invocation) Extra() any { return inv.m.extra }
