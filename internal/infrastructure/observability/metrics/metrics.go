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

	"github.com/dreschagin/water-quality-dashboard/internal/application/port"
)

const namespace = "water_quality"

// Metrics bundles prometheus collectors of the API process.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter

	ReadingsAccepted  prometheus.Counter
	ReadingsRejected  prometheus.Counter
	ValidationErrors  *prometheus.CounterVec
	UnitUsage         *prometheus.CounterVec
	IngestionDuration prometheus.Histogram
	ReadingsPurged    prometheus.Counter

	WebSocketClients  prometheus.Gauge
	HostCPUPercent    prometheus.Gauge
	HostMemoryPercent prometheus.Gauge
	HostDiskPercent   prometheus.Gauge
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected bearer tokens.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_dropped_total",
			Help:      "Total number of ingestion requests dropped by the rate limiter.",
		}),
		ReadingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_accepted_total",
			Help:      "Total number of stored readings.",
		}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "Total number of readings rejected by validation.",
		}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Validation issues by error code.",
		}, []string{"code"}),
		UnitUsage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_usage_total",
			Help:      "Accepted readings by measurement field and input unit.",
		}, []string{"field", "unit"}),
		IngestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Time spent validating and storing one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReadingsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_purged_total",
			Help:      "Total number of readings removed by the retention job.",
		}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard clients.",
		}),
		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_cpu_percent",
			Help:      "Host CPU utilisation sampled by the collector.",
		}),
		HostMemoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_memory_percent",
			Help:      "Host memory utilisation sampled by the collector.",
		}),
		HostDiskPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_disk_percent",
			Help:      "Root filesystem utilisation sampled by the collector.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
		m.ReadingsAccepted,
		m.ReadingsRejected,
		m.ValidationErrors,
		m.UnitUsage,
		m.IngestionDuration,
		m.ReadingsPurged,
		m.WebSocketClients,
		m.HostCPUPercent,
		m.HostMemoryPercent,
		m.HostDiskPercent,
	)

	return m
}

// RecordIngestion реализует port.IngestionRecorder
func (m *Metrics) RecordIngestion(stats port.IngestionStats) {
	m.ReadingsAccepted.Add(float64(stats.Accepted))
	m.ReadingsRejected.Add(float64(stats.Rejected))
	m.IngestionDuration.Observe(stats.Duration.Seconds())

	for code, count := range stats.ErrorsByCode {
		m.ValidationErrors.WithLabelValues(code).Add(float64(count))
	}
	for key, count := range stats.UnitsUsed {
		field, unit, found := strings.Cut(key, ":")
		if !found {
			continue
		}
		m.UnitUsage.WithLabelValues(field, unit).Add(float64(count))
	}
}

// RecordPurge учитывает удаленные по сроку хранения показания
func (m *Metrics) RecordPurge(deleted int64) {
	m.ReadingsPurged.Add(float64(deleted))
}

// ObserveHost обновляет снимок загрузки хоста
func (m *Metrics) ObserveHost(cpuPercent, memoryPercent, diskPercent float64) {
	m.HostCPUPercent.Set(cpuPercent)
	m.HostMemoryPercent.Set(memoryPercent)
	m.HostDiskPercent.Set(diskPercent)
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/", path == "/ws", path == "/healthz", path == "/readyz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	case path == "/api/v1/readings/latest", path == "/api/v1/readings/history":
		return path
	case strings.HasPrefix(path, "/api/v1/"):
		parts := strings.SplitN(strings.TrimPrefix(path, "/api/v1/"), "/", 2)
		return "/api/v1/" + parts[0]
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
