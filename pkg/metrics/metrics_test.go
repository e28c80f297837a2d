package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMiddleware_CountsByRouteAndStatus(t *testing.T) {
	t.Parallel()

	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/patients/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing/:id", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/patients/1", "/patients/2", "/missing/3", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, m, "records_http_requests_total",
		map[string]string{"path": "/patients/:id", "status": "200"}))
	assert.Equal(t, 1.0, counterValue(t, m, "records_http_requests_total",
		map[string]string{"path": "/missing/:id", "status": "404"}))
	assert.Equal(t, 1.0, counterValue(t, m, "records_http_requests_total",
		map[string]string{"path": "/boom", "status": "500"}))
}

func TestAuthEvent(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthEvent("login_success")
	m.AuthEvent("login_success")
	m.AuthEvent("login_failed")

	assert.Equal(t, 2.0, counterValue(t, m, "records_auth_events_total", map[string]string{"event": "login_success"}))
	assert.Equal(t, 1.0, counterValue(t, m, "records_auth_events_total", map[string]string{"event": "login_failed"}))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.AuthEvent("login_success") })
}

func TestHandler_ExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthEvent("refresh_success")

	e := echo.New()
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `records_auth_events_total{event="refresh_success"} 1`))
}
