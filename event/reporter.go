package event

import (
	"github.com/yaoapp/kun/log"

	"github.com/yaoapp/listener/event/types"
)

// report hands err to the configured error handler. A panicking handler is
// recovered here and its failure logged from another goroutine, so it never
// unwinds through dispatch or invocation bookkeeping.
func (m *Middleware) report(err error, info types.ErrorInfo) {
	m.metrics.reported(info.RaisedBy)

	defer func() {
		if r := recover(); r != nil {
			go log.With(log.F{
				"raised_by":   string(info.RaisedBy),
				"listener_id": info.ListenerID,
				"reported":    err.Error(),
			}).Error("listener middleware: error handler panicked: %v", r)
		}
	}()
	m.onError(err, info)
}

// logError is the default error handler.
func logError(err error, info types.ErrorInfo) {
	log.With(log.F{
		"raised_by":   string(info.RaisedBy),
		"listener_id": info.ListenerID,
	}).Error("listener middleware error: %v", err)
}
