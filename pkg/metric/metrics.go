// Package metric exposes Prometheus metrics for the stream decorators
// and the tailer.
package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "streamio"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Stream decorator metrics
	StreamBytesRead prometheus.Counter
	StreamLimitHits prometheus.Counter

	// Tailer metrics
	TailerLinesTotal     *prometheus.CounterVec
	TailerRotationsTotal *prometheus.CounterVec
	TailerNotFoundTotal  *prometheus.CounterVec

	// Queue stream metrics
	QueueChunksTotal prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// Get returns the global metrics instance
func Get() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		StreamBytesRead: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "streamio_stream_bytes_read_total",
				Help: "Total bytes delivered by counting stream decorators",
			},
		),
		StreamLimitHits: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "streamio_stream_limit_hits_total",
				Help: "Times a bounded stream reached its byte budget",
			},
		),
		TailerLinesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamio_tailer_lines_total",
				Help: "Lines delivered by tailers",
			},
			[]string{"path"},
		),
		TailerRotationsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamio_tailer_rotations_total",
				Help: "File rotations observed by tailers",
			},
			[]string{"path"},
		),
		TailerNotFoundTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamio_tailer_not_found_total",
				Help: "Transitions into the file-not-found state",
			},
			[]string{"path"},
		),
		QueueChunksTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "streamio_queue_chunks_total",
				Help: "Chunks enqueued across queue streams",
			},
		),
		QueueDepth: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "streamio_queue_depth_chunks",
				Help: "Chunks currently queued and not yet read",
			},
		),
	}
}

// RecordLine counts one delivered line for path.
func (m *Metrics) RecordLine(path string) {
	m.TailerLinesTotal.WithLabelValues(path).Inc()
}

// RecordRotation counts one observed rotation for path.
func (m *Metrics) RecordRotation(path string) {
	m.TailerRotationsTotal.WithLabelValues(path).Inc()
}

// RecordNotFound counts one transition into file-not-found for path.
func (m *Metrics) RecordNotFound(path string) {
	m.TailerNotFoundTotal.WithLabelValues(path).Inc()
}
