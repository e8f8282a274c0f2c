package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	rowsProcessed   prometheus.Counter
	parseWarnings   prometheus.Counter
	telegramSends   *prometheus.CounterVec
	lastRunTime     *prometheus.GaugeVec
	lastRunCounts   *prometheus.GaugeVec

	requestCount         uint64
	runCount             uint64
	runFailCount         uint64
	runDurationTotal     uint64
	rowCount             uint64
	parseWarningCount    uint64
	telegramSendCount    uint64
	telegramFailCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workday_runs_total",
		Help: "Total attendance check runs by mode and outcome",
	}, []string{"mode", "status"})

	// Portal fetches dominate run time, so the buckets stretch well past
	// the HTTP defaults.
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workday_run_duration_seconds",
		Help:    "Duration of attendance check runs",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})

	rowsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workday_rows_processed_total",
		Help: "Total report rows normalized across runs",
	})

	parseWarnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workday_parse_warnings_total",
		Help: "Total cell values that looked meaningful but failed to parse",
	})

	telegramSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workday_telegram_sends_total",
		Help: "Telegram delivery attempts by outcome",
	}, []string{"status"})

	lastRunTime := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workday_last_run_timestamp_seconds",
		Help: "Unix time of the most recent run per mode",
	}, []string{"mode"})

	lastRunCounts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workday_last_run_employees",
		Help: "Summary counts from the most recent run",
	}, []string{"category"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, runsTotal, runDuration, rowsProcessed, parseWarnings, telegramSends, lastRunTime, lastRunCounts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		rowsProcessed:   rowsProcessed,
		parseWarnings:   parseWarnings,
		telegramSends:   telegramSends,
		lastRunTime:     lastRunTime,
		lastRunCounts:   lastRunCounts,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// ObserveRun records the outcome of one attendance check run.
func (m *MetricsService) ObserveRun(mode string, status models.RunStatus, duration time.Duration, counts models.SummaryCounts) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode, string(status)).Inc()
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.lastRunTime.WithLabelValues(mode).SetToCurrentTime()

	atomic.AddUint64(&m.runCount, 1)
	atomic.AddUint64(&m.runDurationTotal, uint64(duration.Nanoseconds()))
	if status == models.RunStatusFailed {
		atomic.AddUint64(&m.runFailCount, 1)
	}

	if counts.TotalEmployees < 0 {
		return
	}
	m.lastRunCounts.WithLabelValues("total").Set(float64(counts.TotalEmployees))
	m.lastRunCounts.WithLabelValues("target").Set(float64(counts.Target))
	m.lastRunCounts.WithLabelValues("excluded").Set(float64(counts.Excluded))
	m.lastRunCounts.WithLabelValues("clocked_in").Set(float64(counts.ClockedIn))
	m.lastRunCounts.WithLabelValues("missing_in").Set(float64(counts.MissingIn))
	m.lastRunCounts.WithLabelValues("clocked_out").Set(float64(counts.ClockedOut))
	m.lastRunCounts.WithLabelValues("missing_out").Set(float64(counts.MissingOut))
}

// ObserveRows counts normalized report rows.
func (m *MetricsService) ObserveRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsProcessed.Add(float64(n))
	atomic.AddUint64(&m.rowCount, uint64(n))
}

// ObserveParseWarning counts a cell that failed to parse despite carrying digits.
func (m *MetricsService) ObserveParseWarning() {
	if m == nil {
		return
	}
	m.parseWarnings.Inc()
	atomic.AddUint64(&m.parseWarningCount, 1)
}

// ObserveTelegramSend records one delivery attempt.
func (m *MetricsService) ObserveTelegramSend(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.telegramSends.WithLabelValues("sent").Inc()
		atomic.AddUint64(&m.telegramSendCount, 1)
		return
	}
	m.telegramSends.WithLabelValues("failed").Inc()
	atomic.AddUint64(&m.telegramFailCount, 1)
}

// Snapshot returns aggregated metrics suitable for the ops stats endpoint.
func (m *MetricsService) Snapshot() models.RuntimeMetrics {
	if m == nil {
		return models.RuntimeMetrics{}
	}
	runs := atomic.LoadUint64(&m.runCount)
	runDuration := atomic.LoadUint64(&m.runDurationTotal)

	var avgRunMs float64
	if runs > 0 {
		avgRunMs = float64(runDuration) / float64(runs) / float64(time.Millisecond)
	}

	return models.RuntimeMetrics{
		RunsTotal:            runs,
		RunsFailed:           atomic.LoadUint64(&m.runFailCount),
		AverageRunDurationMs: avgRunMs,
		RowsProcessed:        atomic.LoadUint64(&m.rowCount),
		ParseWarnings:        atomic.LoadUint64(&m.parseWarningCount),
		TelegramSends:        atomic.LoadUint64(&m.telegramSendCount),
		TelegramFailures:     atomic.LoadUint64(&m.telegramFailCount),
		RequestsTotal:        atomic.LoadUint64(&m.requestCount),
		Goroutines:           runtime.NumGoroutine(),
		GeneratedAt:          time.Now().UTC(),
	}
}
