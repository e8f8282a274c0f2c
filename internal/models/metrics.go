package models

import "time"

// RuntimeMetrics is a point-in-time aggregate of process counters, exposed
// on the ops API for quick inspection without scraping Prometheus.
type RuntimeMetrics struct {
	RunsTotal            uint64    `json:"runs_total"`
	RunsFailed           uint64    `json:"runs_failed"`
	AverageRunDurationMs float64   `json:"average_run_duration_ms"`
	RowsProcessed        uint64    `json:"rows_processed"`
	ParseWarnings        uint64    `json:"parse_warnings"`
	TelegramSends        uint64    `json:"telegram_sends"`
	TelegramFailures     uint64    `json:"telegram_failures"`
	RequestsTotal        uint64    `json:"requests_total"`
	Goroutines           int       `json:"goroutines"`
	GeneratedAt          time.Time `json:"generated_at"`
}
