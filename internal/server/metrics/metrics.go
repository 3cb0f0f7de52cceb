// Package metrics exposes Prometheus collectors for the HTTP API and the
// authentication flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
	ResultExpired = "expired"
	ResultLimited = "rate_limited"
)

// Metrics groups the server collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	resetRequests    *prometheus.CounterVec
	resetRedemptions *prometheus.CounterVec
	mailDeliveries   *prometheus.CounterVec
	purgedResetCodes prometheus.Counter
}

// New registers the collectors with reg. Passing a fresh registry keeps
// tests independent of the global one.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Registration attempts by result",
		}, []string{"result"}),
		resetRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_reset_requests_total",
			Help: "Password reset requests by result",
		}, []string{"result"}),
		resetRedemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_reset_redemptions_total",
			Help: "Password reset code redemptions by result",
		}, []string{"result"}),
		mailDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Outgoing email deliveries by result",
		}, []string{"result"}),
		purgedResetCodes: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_password_reset_codes_purged_total",
			Help: "Expired reset codes removed by housekeeping",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) ResetRequest(result string) {
	if m == nil {
		return
	}
	m.resetRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ResetRedemption(result string) {
	if m == nil {
		return
	}
	m.resetRedemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) MailDelivery(result string) {
	if m == nil {
		return
	}
	m.mailDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ResetCodesPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedResetCodes.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
