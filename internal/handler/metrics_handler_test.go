package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	"github.com/dgmosdaegu/work-day-bot/internal/service"
)

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	c, w := newGinContext(http.MethodGet, "/health", nil)
	handler.Health(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestMetricsHandlerPrometheusExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveRun("morning", models.RunStatusSucceeded, 2*time.Second, models.SummaryCounts{TotalEmployees: 5, Target: 4})
	handler := NewMetricsHandler(metrics)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "workday_runs_total")
	require.Contains(t, w.Body.String(), `mode="morning"`)
}

func TestMetricsHandlerPrometheusUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	// Flush the buffered status to the recorder, as gin's engine does after
	// the handler chain; a body-less c.Status is deferred until then.
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveRun("evening", models.RunStatusFailed, time.Second, models.SummaryCounts{TotalEmployees: -1})
	metrics.ObserveRows(12)
	handler := NewMetricsHandler(metrics)

	c, w := newGinContext(http.MethodGet, "/api/v1/stats", nil)
	handler.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.RuntimeMetrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.EqualValues(t, 1, envelope.Data.RunsTotal)
	require.EqualValues(t, 1, envelope.Data.RunsFailed)
	require.EqualValues(t, 12, envelope.Data.RowsProcessed)
}
