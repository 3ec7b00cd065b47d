// Package metrics exposes Prometheus collectors for the Thing runtime.
//
// All recording methods are safe to call on a nil *Metrics, so components
// take a *Metrics in their config and record unconditionally.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "safething"

// Metrics contains all runtime collectors.
type Metrics struct {
	// Store metrics
	StoreOps     *prometheus.CounterVec
	StoreLatency *prometheus.HistogramVec

	// Polling loop metrics
	PollTicks  *prometheus.CounterVec
	PollErrors *prometheus.CounterVec

	// Subscription metrics
	Notifications *prometheus.CounterVec
	Subscriptions prometheus.Gauge

	// Action request metrics
	ActionRequests *prometheus.CounterVec
	Monitors       prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		StoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Store operations by backend, operation and result",
			},
			[]string{"backend", "op", "result"},
		),

		StoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Store operation round-trip time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),

		PollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "loop",
				Name:      "ticks_total",
				Help:      "Completed polling ticks by loop",
			},
			[]string{"loop"},
		),

		PollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "loop",
				Name:      "errors_total",
				Help:      "Errors swallowed by polling loops",
			},
			[]string{"loop"},
		),

		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "notifications_total",
				Help:      "Notifications delivered by kind (topic, attr)",
			},
			[]string{"kind"},
		),

		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscription",
				Name:      "active",
				Help:      "Subscriptions monitored by the polling loop",
			},
		),

		ActionRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "requests_total",
				Help:      "Action request transitions by role (sent, received) and state",
			},
			[]string{"role", "state"},
		),

		Monitors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "action",
				Name:      "monitors_active",
				Help:      "Outstanding sent requests being monitored",
			},
		),
	}
}

// Collectors returns all collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StoreOps,
		m.StoreLatency,
		m.PollTicks,
		m.PollErrors,
		m.Notifications,
		m.Subscriptions,
		m.ActionRequests,
		m.Monitors,
	}
}

// Register registers all collectors. Collectors already registered are
// not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Tick records a completed polling tick.
func (m *Metrics) Tick(loop string) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(loop).Inc()
}

// TickError records an error swallowed by a polling loop.
func (m *Metrics) TickError(loop string) {
	if m == nil {
		return
	}
	m.PollErrors.WithLabelValues(loop).Inc()
}

// Notified records a delivered notification.
func (m *Metrics) Notified(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}

// SetSubscriptions sets the number of monitored subscriptions.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.Subscriptions.Set(float64(n))
}

// Request records an action request reaching state.
func (m *Metrics) Request(role, state string) {
	if m == nil {
		return
	}
	m.ActionRequests.WithLabelValues(role, state).Inc()
}

// MonitorStarted records a new sender-side monitor.
func (m *Metrics) MonitorStarted() {
	if m == nil {
		return
	}
	m.Monitors.Inc()
}

// MonitorStopped records a finished sender-side monitor.
func (m *Metrics) MonitorStopped() {
	if m == nil {
		return
	}
	m.Monitors.Dec()
}
