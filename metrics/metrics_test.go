package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.OAuthOutcome("token", "success")
	m.OAuthOutcome("token", "invalid_grant")
	m.OAuthOutcome("token", "invalid_grant")
	m.ListServed("stories", "ok")
	m.HTTPRequest(http.MethodGet, http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.oauth.WithLabelValues("token", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.oauth.WithLabelValues("token", "invalid_grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listRequests.WithLabelValues("stories", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OAuthOutcome("authorize", "success")
		m.ListServed("tasks", "ok")
		m.HTTPRequest(http.MethodPost, http.StatusCreated)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ListServed("projects", "client_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storyboard_list_requests_total{resource="projects",result="client_error"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
