// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storyboard"

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	oauth        *prometheus.CounterVec
	listRequests *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		oauth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_outcomes_total",
			Help:      "OAuth flow results by step and error code.",
		}, []string{"step", "outcome"}),
		listRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_requests_total",
			Help:      "Paginated list requests by resource and result.",
		}, []string{"resource", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.oauth,
		m.listRequests,
		m.httpRequests,
	)
	return m
}

// OAuthOutcome counts one authorize, authorize_return or token result.
// Outcome is "success" or the OAuth error code.
func (m *Metrics) OAuthOutcome(step, outcome string) {
	if m == nil {
		return
	}
	m.oauth.WithLabelValues(step, outcome).Inc()
}

// ListServed counts a list request; result is "ok", "client_error" or "error".
func (m *Metrics) ListServed(resource, result string) {
	if m == nil {
		return
	}
	m.listRequests.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
