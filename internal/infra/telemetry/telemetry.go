package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the tracking core. HTTP
// request metrics live in the transport middleware, not here.
type Metrics struct {
	fixesAccepted     prometheus.Counter
	fixesRejected     *prometheus.CounterVec
	ingestQueueDepth  prometheus.Gauge
	viewerConnections prometheus.Gauge
	broadcastMessages *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

// NewMetrics registers the collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		fixesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "transit",
			Name:      "fixes_accepted_total",
			Help:      "Location fixes accepted into the ingestion queue",
		}),
		fixesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transit",
			Name:      "fixes_rejected_total",
			Help:      "Location fixes rejected before queueing",
		}, []string{"reason"}),
		ingestQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "transit",
			Name:      "ingest_queue_depth",
			Help:      "Fixes waiting in the chronological ordering queue",
		}),
		viewerConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "transit",
			Name:      "viewer_connections",
			Help:      "Active WebSocket viewer connections",
		}),
		broadcastMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transit",
			Name:      "broadcast_messages_total",
			Help:      "Messages fanned out to viewer connections",
		}, []string{"type"}),
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "transit",
			Name:      "active_sessions",
			Help:      "Sessions currently in the active state",
		}),
	}
}

// FixAccepted implements usecase.IngestObserver.
func (m *Metrics) FixAccepted() {
	if m == nil {
		return
	}
	m.fixesAccepted.Inc()
}

// FixRejected implements usecase.IngestObserver.
func (m *Metrics) FixRejected(reason string) {
	if m == nil {
		return
	}
	m.fixesRejected.WithLabelValues(reason).Inc()
}

// QueueDepth implements usecase.IngestObserver.
func (m *Metrics) QueueDepth(depth int) {
	if m == nil {
		return
	}
	m.ingestQueueDepth.Set(float64(depth))
}

// ViewerConnected increments the viewer connection gauge.
func (m *Metrics) ViewerConnected() {
	if m == nil {
		return
	}
	m.viewerConnections.Inc()
}

// ViewerDisconnected decrements the viewer connection gauge.
func (m *Metrics) ViewerDisconnected() {
	if m == nil {
		return
	}
	m.viewerConnections.Dec()
}

// BroadcastSent records one message fanned out to viewers.
func (m *Metrics) BroadcastSent(messageType string) {
	if m == nil {
		return
	}
	m.broadcastMessages.WithLabelValues(messageType).Inc()
}

// ActiveSessions sets the active session gauge.
func (m *Metrics) ActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}
