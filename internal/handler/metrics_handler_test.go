package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/service"
)

func buildMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	router.GET("/system/metrics", h.Summary)
	return router
}

func TestMetricsHandlerReady(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	router := buildMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{"postgres": up}))
	rec := performRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, rec.Body.String())

	router = buildMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{"postgres": up, "redis": down}))
	rec = performRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = performRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordStatsRun(true)
	metrics.RecordStatsRun(false)
	metrics.RecordCacheOperation(true, time.Millisecond)
	router := buildMetricsRouter(NewMetricsHandler(metrics, nil))

	rec := performRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `examstats_stats_runs_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `examstats_stats_runs_total{outcome="failure"} 1`)

	rec = performRequest(router, httptest.NewRequest(http.MethodGet, "/system/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := string(decodeEnvelope(t, rec).Data)
	assert.Contains(t, body, `"stats_runs_succeeded":1`)
	assert.Contains(t, body, `"stats_runs_failed":1`)
	assert.Contains(t, body, `"cache_hit_ratio":1`)
}

func TestMetricsHandlerWithoutService(t *testing.T) {
	router := buildMetricsRouter(NewMetricsHandler(nil, nil))
	rec := performRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
