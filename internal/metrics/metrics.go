package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the admin service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SquareRequestsTotal *prometheus.CounterVec
	ImpersonationsTotal *prometheus.CounterVec
	InviteEmailsTotal   *prometheus.CounterVec
}

// NewMetrics initializes the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kosmo_admin",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kosmo_admin",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SquareRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kosmo_admin",
			Subsystem: "square",
			Name:      "requests_total",
			Help:      "Total number of Square API calls by operation and result.",
		}, []string{"operation", "result"}), // result: ok, error
		ImpersonationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kosmo_admin",
			Subsystem: "impersonation",
			Name:      "events_total",
			Help:      "Total number of impersonation start/stop events.",
		}, []string{"action"}),
		InviteEmailsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kosmo_admin",
			Subsystem: "invites",
			Name:      "emails_total",
			Help:      "Total number of invite e-mails by delivery result.",
		}, []string{"result"}),
	}
}
