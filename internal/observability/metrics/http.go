package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pipelineTotal      *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
	pipelineBlocked    *prometheus.CounterVec
	retrievalFallback  *prometheus.CounterVec
	retrievedChunks    *prometheus.HistogramVec
	modelTierTotal     *prometheus.CounterVec
	rateLimitRejected  *prometheus.CounterVec
	outputSubstitution *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muraho",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muraho",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total pipeline queries by interaction mode.",
		},
		[]string{"service", "mode"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muraho",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode"},
	)
	pipelineBlocked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "safety",
			Name:      "blocked_queries_total",
			Help:      "Total queries blocked by the safety gate, by reason.",
		},
		[]string{"service", "reason"},
	)
	retrievalFallback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "retrieval",
			Name:      "keyword_fallback_total",
			Help:      "Total retrievals that triggered the keyword fallback.",
		},
		[]string{"service"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muraho",
			Subsystem: "retrieval",
			Name:      "selected_sources",
			Help:      "Distribution of sources selected per query.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		},
		[]string{"service"},
	)
	modelTierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "pipeline",
			Name:      "model_tier_total",
			Help:      "Total generations by routed model tier.",
		},
		[]string{"service", "model"},
	)
	rateLimitRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the per-tier rate limiter.",
		},
		[]string{"service", "tier"},
	)
	outputSubstitution := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muraho",
			Subsystem: "safety",
			Name:      "output_substitutions_total",
			Help:      "Total generated answers replaced by the output gate.",
		},
		[]string{"service", "reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineTotal,
		pipelineDuration,
		pipelineBlocked,
		retrievalFallback,
		retrievedChunks,
		modelTierTotal,
		rateLimitRejected,
		outputSubstitution,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		pipelineTotal:      pipelineTotal,
		pipelineDuration:   pipelineDuration,
		pipelineBlocked:    pipelineBlocked,
		retrievalFallback:  retrievalFallback,
		retrievedChunks:    retrievedChunks,
		modelTierTotal:     modelTierTotal,
		rateLimitRejected:  rateLimitRejected,
		outputSubstitution: outputSubstitution,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sources/"):
		return "/v1/sources/{source_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordPipeline(service, mode string, sourceCount int, duration time.Duration) {
	m.pipelineTotal.WithLabelValues(service, mode).Inc()
	m.pipelineDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
	m.retrievedChunks.WithLabelValues(service).Observe(float64(sourceCount))
}

func (m *HTTPServerMetrics) RecordBlockedQuery(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.pipelineBlocked.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordKeywordFallback(service string) {
	m.retrievalFallback.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordModelTier(service, model string) {
	if model == "" {
		model = "unknown"
	}
	m.modelTierTotal.WithLabelValues(service, model).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service, tier string) {
	if tier == "" {
		tier = "unknown"
	}
	m.rateLimitRejected.WithLabelValues(service, tier).Inc()
}

func (m *HTTPServerMetrics) RecordOutputSubstitution(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.outputSubstitution.WithLabelValues(service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
