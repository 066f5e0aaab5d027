package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal    *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexInFlight prometheus.Gauge
	indexedChunks *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "worker",
			Name:      "index_requests_total",
			Help:      "Total processed index requests by action and status.",
		},
		[]string{"service", "action", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muraho",
			Subsystem: "worker",
			Name:      "index_duration_seconds",
			Help:      "Index request processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "action"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muraho",
			Subsystem: "worker",
			Name:      "index_in_flight",
			Help:      "Number of in-flight index requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	indexedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muraho",
			Subsystem: "worker",
			Name:      "indexed_chunks",
			Help:      "Distribution of chunks written per index request.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service"},
	)

	registry.MustRegister(indexTotal, indexDuration, indexInFlight, indexedChunks)

	return &WorkerMetrics{
		registry:      registry,
		indexTotal:    indexTotal,
		indexDuration: indexDuration,
		indexInFlight: indexInFlight,
		indexedChunks: indexedChunks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIndexRequest() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishIndexRequest(service, action string, duration time.Duration, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	if action == "" {
		action = "unknown"
	}

	m.indexTotal.WithLabelValues(service, action, status).Inc()
	m.indexDuration.WithLabelValues(service, action).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveIndexedChunks(service string, count int) {
	m.indexedChunks.WithLabelValues(service).Observe(float64(count))
}
