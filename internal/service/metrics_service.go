package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation: HTTP request
// metrics plus counters for the domain events worth alerting on.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	submissionTotal prometheus.Counter
	bulkItemsFailed prometheus.Counter
	reportsRendered *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_transitions_total",
		Help: "Total application status transitions by target status and outcome",
	}, []string{"target", "outcome"})

	submissionTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "application_submissions_total",
		Help: "Total successful application submissions",
	})

	bulkItemsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bulk_transition_failures_total",
		Help: "Total failed items across bulk status updates",
	})

	reportsRendered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_rendered_total",
		Help: "Total rendered register exports by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitionTotal, submissionTotal, bulkItemsFailed, reportsRendered, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitionTotal: transitionTotal,
		submissionTotal: submissionTotal,
		bulkItemsFailed: bulkItemsFailed,
		reportsRendered: reportsRendered,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveTransition counts one attempted status transition.
func (m *MetricsService) ObserveTransition(target models.ApplicationStatus, success bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.transitionTotal.WithLabelValues(string(target), outcome).Inc()
	if success && target == models.StatusPending {
		m.submissionTotal.Inc()
	}
}

// ObserveBulkFailures counts failed items of a bulk update.
func (m *MetricsService) ObserveBulkFailures(failed int) {
	if m == nil || failed <= 0 {
		return
	}
	m.bulkItemsFailed.Add(float64(failed))
}

// ObserveReportRendered counts one finished register export.
func (m *MetricsService) ObserveReportRendered(format models.ReportFormat) {
	if m == nil {
		return
	}
	m.reportsRendered.WithLabelValues(string(format)).Inc()
}
