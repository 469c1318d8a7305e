// Package metrics provides Prometheus metrics collection for Quotagate.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/quotagate/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quotagate"

// Collector holds all Prometheus metrics for Quotagate.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Gate metrics
	AuthFailures       *prometheus.CounterVec
	QuotaRejections    *prometheus.CounterVec
	Admissions         *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter

	// Collaborator metrics
	Notifications  *prometheus.CounterVec
	PayloadReloads *prometheus.CounterVec
}

// New creates a collector on its own registry, with Go and process
// collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of gated requests processed",
			},
			[]string{"endpoint", "status", "plan_id"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Gated request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"endpoint"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),
		QuotaRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_rejections_total",
				Help:      "Total number of requests rejected for exhausted daily quota",
			},
			[]string{"plan_id"},
		),
		Admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Total number of requests admitted against a quota",
			},
			[]string{"plan_id"},
		),
		AuditWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_write_failures_total",
				Help:      "Total number of audit records that could not be written",
			},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notifications by kind and result",
			},
			[]string{"kind", "result"},
		),
		PayloadReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_reloads_total",
				Help:      "Total number of payload dataset reloads by result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one gated request.
func (c *Collector) ObserveRequest(endpoint string, status int, planID string, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status), planID).Inc()
	c.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// AuthFailure records an authentication failure by reason.
func (c *Collector) AuthFailure(reason string) {
	if c == nil {
		return
	}
	c.AuthFailures.WithLabelValues(reason).Inc()
}

// QuotaRejected records a quota rejection.
func (c *Collector) QuotaRejected(planID string) {
	if c == nil {
		return
	}
	c.QuotaRejections.WithLabelValues(planID).Inc()
}

// Admitted records an admission.
func (c *Collector) Admitted(planID string) {
	if c == nil {
		return
	}
	c.Admissions.WithLabelValues(planID).Inc()
}

// AuditWriteFailed records a swallowed audit failure.
func (c *Collector) AuditWriteFailed() {
	if c == nil {
		return
	}
	c.AuditWriteFailures.Inc()
}

// Notification records a notification outcome ("sent", "failed", "dropped").
func (c *Collector) Notification(kind, result string) {
	if c == nil {
		return
	}
	c.Notifications.WithLabelValues(kind, result).Inc()
}

// PayloadReload records a dataset reload outcome ("ok", "error").
func (c *Collector) PayloadReload(result string) {
	if c == nil {
		return
	}
	c.PayloadReloads.WithLabelValues(result).Inc()
}

// Ensure interface compliance.
var _ ports.Metrics = (*Collector)(nil)
