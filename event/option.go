package event

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yaoapp/listener/event/types"
)

// Option configures a Middleware.
type Option func(*Middleware)

// WithExtra sets a value handed to every listener invocation through API.Extra.
func WithExtra(extra any) Option {
	return func(m *Middleware) {
		m.extra = extra
	}
}

// WithErrorHandler replaces the default kun/log error reporter.
// A nil handler keeps the default.
func WithErrorHandler(handler types.ErrorHandler) Option {
	return func(m *Middleware) {
		if handler != nil {
			m.onError = handler
		}
	}
}

// WithMetrics registers the middleware's collectors with reg under the
// default namespace. Metrics are off unless this option is given.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Middleware) {
		m.metrics = newMetrics(reg, types.DefaultNamespace)
	}
}
