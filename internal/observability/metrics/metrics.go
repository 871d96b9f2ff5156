// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcript_reconciler"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Update metrics
	UpdatesReceived *prometheus.CounterVec
	UpdatesApplied  *prometheus.CounterVec
	UpdatesRejected *prometheus.CounterVec
	ApplyLatency    prometheus.Histogram

	// Record metrics
	RecordsActive     prometheus.Gauge
	RecordsFinalized  prometheus.Counter
	RecordsCleared    prometheus.Counter
	SegmentsPerRecord prometheus.Histogram

	// Source metrics
	SourceConnects *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec
	SourceMessages *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Display metrics
	DisplayClientsActive prometheus.Gauge
	DisplayBroadcasts    prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Update metrics
		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_received_total",
			Help:      "Total number of transcript updates received",
		}, []string{"source"}),
		UpdatesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_applied_total",
			Help:      "Total number of updates applied, by outcome",
		}, []string{"outcome"}),
		UpdatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_rejected_total",
			Help:      "Total number of malformed updates rejected",
		}, []string{"reason"}),
		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_latency_seconds",
			Help:      "Latency of one reconciling apply call",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		// Record metrics
		RecordsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_active",
			Help:      "Number of speakers with a transcript record",
		}),
		RecordsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_finalized_total",
			Help:      "Total number of applies that left a record fully finalized",
		}),
		RecordsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_cleared_total",
			Help:      "Total number of records discarded by clear-all",
		}),
		SegmentsPerRecord: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_record",
			Help:      "Stored segment count after each apply",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
		}),

		// Source metrics
		SourceConnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_connects_total",
			Help:      "Total number of transcript source (re)connects",
		}, []string{"source"}),
		SourceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Total number of transcript source errors",
		}, []string{"source", "error_type"}),
		SourceMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_messages_total",
			Help:      "Total number of messages received from transcript sources",
		}, []string{"source", "type"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Display metrics
		DisplayClientsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_clients_active",
			Help:      "Number of connected display websocket clients",
		}),
		DisplayBroadcasts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_broadcasts_total",
			Help:      "Total number of record broadcasts to display clients",
		}),

		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "path"}),
	}
}

// RecordUpdateReceived records an inbound update from a source.
func (m *Metrics) RecordUpdateReceived(source string) {
	m.UpdatesReceived.WithLabelValues(source).Inc()
}

// RecordApply records one apply call with its outcome and resulting segment count.
func (m *Metrics) RecordApply(outcome string, latencySeconds float64, segments int) {
	m.UpdatesApplied.WithLabelValues(outcome).Inc()
	m.ApplyLatency.Observe(latencySeconds)
	m.SegmentsPerRecord.Observe(float64(segments))
}

// RecordUpdateRejected records a malformed update being rejected.
func (m *Metrics) RecordUpdateRejected(reason string) {
	m.UpdatesRejected.WithLabelValues(reason).Inc()
}

// SetRecordsActive records the current number of speaker records.
func (m *Metrics) SetRecordsActive(n int) {
	m.RecordsActive.Set(float64(n))
}

// RecordFinalized records an apply that left the record fully finalized.
func (m *Metrics) RecordFinalized() {
	m.RecordsFinalized.Inc()
}

// RecordCleared records a clear-all discarding records.
func (m *Metrics) RecordCleared(count int) {
	m.RecordsCleared.Add(float64(count))
}

// RecordSourceConnect records a source (re)connect.
func (m *Metrics) RecordSourceConnect(source string) {
	m.SourceConnects.WithLabelValues(source).Inc()
}

// RecordSourceError records a source error.
func (m *Metrics) RecordSourceError(source, errorType string) {
	m.SourceErrors.WithLabelValues(source, errorType).Inc()
}

// RecordSourceMessage records a message received from a source.
func (m *Metrics) RecordSourceMessage(source, msgType string) {
	m.SourceMessages.WithLabelValues(source, msgType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordDisplayClientConnected records a display client connecting.
func (m *Metrics) RecordDisplayClientConnected() {
	m.DisplayClientsActive.Inc()
}

// RecordDisplayClientDisconnected records a display client disconnecting.
func (m *Metrics) RecordDisplayClientDisconnected() {
	m.DisplayClientsActive.Dec()
}

// RecordBroadcast records a record broadcast to display clients.
func (m *Metrics) RecordBroadcast() {
	m.DisplayBroadcasts.Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, latencySeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(latencySeconds)
}
