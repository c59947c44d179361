package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UploadMetrics records upload submissions and the sessions holding them.
type UploadMetrics struct {
	registry *prometheus.Registry

	submissionsTotal *prometheus.CounterVec
	uploadDuration   *prometheus.HistogramVec
	uploadsInFlight  prometheus.Gauge
	activeSessions   prometheus.Gauge
	stagedBytesTotal prometheus.Counter
}

// NewUploadMetrics registers the collectors on a private registry labelled with service.
func NewUploadMetrics(service string) *UploadMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "ythm",
			Subsystem:   "upload",
			Name:        "submissions_total",
			Help:        "Upload submissions by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	uploadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "ythm",
			Subsystem:   "upload",
			Name:        "duration_seconds",
			Help:        "Time spent waiting on the ingestion backend.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	uploadsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "ythm",
			Subsystem:   "upload",
			Name:        "in_flight",
			Help:        "Uploads currently waiting on the ingestion backend.",
			ConstLabels: constLabels,
		},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "ythm",
			Subsystem:   "session",
			Name:        "active",
			Help:        "Browser sessions currently held in memory.",
			ConstLabels: constLabels,
		},
	)
	stagedBytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "ythm",
			Subsystem:   "staging",
			Name:        "bytes_total",
			Help:        "Bytes written to the staging store.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(
		submissionsTotal,
		uploadDuration,
		uploadsInFlight,
		activeSessions,
		stagedBytesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &UploadMetrics{
		registry:         registry,
		submissionsTotal: submissionsTotal,
		uploadDuration:   uploadDuration,
		uploadsInFlight:  uploadsInFlight,
		activeSessions:   activeSessions,
		stagedBytesTotal: stagedBytesTotal,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *UploadMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UploadStarted marks a request to the ingestion backend as in flight.
func (m *UploadMetrics) UploadStarted() {
	m.uploadsInFlight.Inc()
}

// UploadFinished records the outcome and duration of an upload.
func (m *UploadMetrics) UploadFinished(outcome string, elapsed time.Duration) {
	m.uploadsInFlight.Dec()
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.uploadDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SubmitRejected counts a submit that never reached the backend.
func (m *UploadMetrics) SubmitRejected(outcome string) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveSessions sets the live session gauge.
func (m *UploadMetrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// FileStaged adds size to the staged bytes counter.
func (m *UploadMetrics) FileStaged(size int64) {
	if size > 0 {
		m.stagedBytesTotal.Add(float64(size))
	}
}
