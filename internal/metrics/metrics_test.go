package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/users/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/users/1", "/api/users/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/users/:id", "204")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	require.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAuthAttempt("login", "invalid_credentials")
	m.RecordRateLimited()
	m.RecordBackup(nil)
	m.RecordBackup(errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttemptsTotal.WithLabelValues("login", "invalid_credentials")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.BackupsTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.BackupsTotal.WithLabelValues("failure")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New(nil)
	m.RecordRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "useradmin_rate_limited_total 1")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
