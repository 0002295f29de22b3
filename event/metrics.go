package event

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yaoapp/listener/event/types"
	"github.com/yaoapp/listener/task"
)

// metrics holds the middleware's collectors. A nil *metrics records nothing.
type metrics struct {
	dispatchedTotal prometheus.Counter
	invocations     *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	entries         prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	m := &metrics{
		dispatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "middleware",
				Name:      "dispatched_events_total",
				Help:      "Total number of events forwarded through the middleware",
			},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "middleware",
				Name:      "listener_invocations_total",
				Help:      "Total number of settled listener invocations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "middleware",
				Name:      "listener_duration_seconds",
				Help:      "Histogram of listener invocation durations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "middleware",
				Name:      "errors_total",
				Help:      "Total number of errors handed to the error handler",
			},
			[]string{"raised_by"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "middleware",
				Name:      "registered_listeners",
				Help:      "Number of registrations, including pending take waiters",
			},
		),
	}

	reg.MustRegister(
		m.dispatchedTotal,
		m.invocations,
		m.duration,
		m.errors,
		m.entries,
	)
	return m
}

func (m *metrics) dispatched() {
	if m == nil {
		return
	}
	m.dispatchedTotal.Inc()
}

func (m *metrics) settled(status task.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(string(status)).Inc()
	m.duration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (m *metrics) reported(by types.RaisedBy) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(string(by)).Inc()
}

func (m *metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
