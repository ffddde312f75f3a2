// Package metrics exposes Prometheus collectors for the HTTP surface and the
// workflow. A nil *Metrics is valid and records nothing, so services can be
// built in tests without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	decisions     *prometheus.CounterVec
	checkins      *prometheus.CounterVec
	sweepClosed   prometheus.Counter
	sweepFailed   prometheus.Counter
	notifyResults *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workforce_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workforce_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workforce_application_decisions_total",
				Help: "Application status changes by target status",
			},
			[]string{"status"},
		),
		checkins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workforce_attendance_events_total",
				Help: "Attendance events by kind (checkin, checkout)",
			},
			[]string{"event"},
		),
		sweepClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_sweep_closed_jobs_total",
			Help: "Jobs closed by the expiry sweep",
		}),
		sweepFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_sweep_failed_jobs_total",
			Help: "Jobs the expiry sweep failed to close",
		}),
		notifyResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workforce_notifications_total",
				Help: "Notification attempts by kind and result (ok, error)",
			},
			[]string{"kind", "result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.decisions, m.checkins,
		m.sweepClosed, m.sweepFailed, m.notifyResults,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) Decision(status string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) Attendance(event string) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(event).Inc()
}

func (m *Metrics) Sweep(closed, failed int) {
	if m == nil {
		return
	}
	m.sweepClosed.Add(float64(closed))
	m.sweepFailed.Add(float64(failed))
}

func (m *Metrics) Notification(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifyResults.WithLabelValues(kind, result).Inc()
}
