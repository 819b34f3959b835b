package monitoring

import (
	"time"

	"callbridge/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallCollector exports call agent metrics. It implements ports.CallMetrics.
type CallCollector struct {
	// Call lifecycle
	callState        prometheus.Gauge
	stateTransitions *prometheus.CounterVec
	activeSubs       prometheus.Gauge
	hostEvents       *prometheus.CounterVec

	// Platform
	workflowActions  *prometheus.CounterVec
	entityUpdates    *prometheus.CounterVec
	platformDuration *prometheus.HistogramVec

	// Signaling and media
	signalReconnects *prometheus.CounterVec
	signalDuration   *prometheus.HistogramVec
	mediaPackets     *prometheus.CounterVec
}

// NewCallCollector registers the collector's metrics on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewCallCollector(reg prometheus.Registerer) *CallCollector {
	factory := promauto.With(reg)

	return &CallCollector{
		callState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callbridge_call_state",
			Help: "Current call state (0=uninitialized 1=initializing 2=connected 3=publishing 4=disconnecting 5=disconnected)",
		}),

		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_call_state_transitions_total",
			Help: "Call state transitions",
		}, []string{"from", "to"}),

		activeSubs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callbridge_active_subscribers",
			Help: "Connections currently tracked as active non-publisher participants",
		}),

		hostEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_host_events_total",
			Help: "Host page events handled",
		}, []string{"event"}),

		workflowActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_workflow_actions_total",
			Help: "Workflow actions triggered by outcome",
		}, []string{"action", "result"}),

		entityUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_entity_updates_total",
			Help: "Entity attribute updates by outcome",
		}, []string{"result"}),

		platformDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callbridge_platform_request_duration_seconds",
			Help:    "Duration of platform data API requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation", "result"}),

		signalReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_signal_reconnects_total",
			Help: "Signaling reconnect attempts by outcome",
		}, []string{"outcome"}),

		signalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "callbridge_signal_request_duration_seconds",
			Help:    "Round trip of acknowledged signaling requests",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"type"}),

		mediaPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callbridge_media_packets_total",
			Help: "RTP packets written or read by the media layer",
		}, []string{"direction", "kind"}),
	}
}

func (c *CallCollector) CallStateChanged(from, to domain.CallState) {
	c.callState.Set(float64(to))
	c.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *CallCollector) WorkflowActionTriggered(action, result string) {
	c.workflowActions.WithLabelValues(action, result).Inc()
}

func (c *CallCollector) EntityUpdated(result string) {
	c.entityUpdates.WithLabelValues(result).Inc()
}

func (c *CallCollector) HostEvent(event domain.HostEventType) {
	c.hostEvents.WithLabelValues(string(event)).Inc()
}

func (c *CallCollector) ActiveSubscribers(count int) {
	c.activeSubs.Set(float64(count))
}

func (c *CallCollector) RecordPlatformRequest(operation, result string, duration time.Duration) {
	c.platformDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

func (c *CallCollector) RecordReconnect(outcome string) {
	c.signalReconnects.WithLabelValues(outcome).Inc()
}

func (c *CallCollector) RecordSignalRequest(messageType string, duration time.Duration) {
	c.signalDuration.WithLabelValues(messageType).Observe(duration.Seconds())
}

func (c *CallCollector) RecordMediaPackets(direction, kind string, n int) {
	c.mediaPackets.WithLabelValues(direction, kind).Add(float64(n))
}
