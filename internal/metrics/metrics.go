// Package metrics provides Prometheus metrics collection for the strategy feed.
// It defines the connection, message and command metrics that are exposed via
// the Prometheus metrics endpoint for monitoring and alerting.
//
// Every recording method is safe to call on a nil *Metrics, so components can
// run without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a feed session.
type Metrics struct {
	// Connection metrics
	ConnectionState prometheus.Gauge       // 0 disconnected, 1 connecting, 2 open
	WSConnects      prometheus.Counter     // Connections that reached the open state
	WSReconnects    prometheus.Counter     // Reconnect attempts scheduled after a drop
	TransportErrors *prometheus.CounterVec // Transport failures by operation

	// Inbound message metrics
	MessagesReceived *prometheus.CounterVec // Decoded messages by kind
	DecodeErrors     prometheus.Counter     // Frames that failed to decode
	ObserverPanics   prometheus.Counter     // Observer callbacks that panicked
	DispatchDuration prometheus.Histogram   // Time spent fanning out one message

	// Outbound command metrics
	CommandsSent    prometheus.Counter // Commands written to the transport
	CommandsDropped prometheus.Counter // Commands dropped because the session was not open

	// Strategy snapshot metrics
	Strategies prometheus.Gauge // Strategies in the current snapshot
	PnLTotal   prometheus.Gauge // Sum of total P&L across the snapshot
	PnLDaily   prometheus.Gauge // Sum of daily P&L across the snapshot
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feed_connection_state",
			Help: "Current feed connection state (0 disconnected, 1 connecting, 2 open)",
		}),
		WSConnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_connects_total",
			Help: "Total number of WebSocket connections opened",
		}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of WebSocket reconnections",
		}),
		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_errors_total",
			Help: "Total number of transport errors by operation",
		}, []string{"op"}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_received_total",
			Help: "Total number of feed messages received by type",
		}, []string{"type"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "decode_errors_total",
			Help: "Total number of inbound frames that failed to decode",
		}),
		ObserverPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "observer_panics_total",
			Help: "Total number of observer callbacks that panicked",
		}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Duration of one message fan-out in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		CommandsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "commands_sent_total",
			Help: "Total number of commands sent to the feed server",
		}),
		CommandsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "commands_dropped_total",
			Help: "Total number of commands dropped while not connected",
		}),
		Strategies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strategies",
			Help: "Number of strategies in the current snapshot",
		}),
		PnLTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pnl_total",
			Help: "Sum of total profit and loss across all strategies",
		}),
		PnLDaily: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pnl_daily",
			Help: "Sum of daily profit and loss across all strategies",
		}),
	}
}

func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.WSConnects.Inc()
}

func (m *Metrics) Reconnecting() {
	if m == nil {
		return
	}
	m.WSReconnects.Inc()
}

func (m *Metrics) TransportError(op string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) ObserverPanic() {
	if m == nil {
		return
	}
	m.ObserverPanics.Inc()
}

func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(d.Seconds())
}

func (m *Metrics) CommandSent() {
	if m == nil {
		return
	}
	m.CommandsSent.Inc()
}

func (m *Metrics) CommandDropped() {
	if m == nil {
		return
	}
	m.CommandsDropped.Inc()
}

// UpdateSnapshot records the size and aggregate P&L of a strategies snapshot.
func (m *Metrics) UpdateSnapshot(count int, totalPnL, dailyPnL float64) {
	if m == nil {
		return
	}
	m.Strategies.Set(float64(count))
	m.PnLTotal.Set(totalPnL)
	m.PnLDaily.Set(dailyPnL)
}
