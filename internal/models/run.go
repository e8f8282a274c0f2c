package models

import "time"

// RunStatus captures how an executed check ended.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is one executed attendance check, kept in the in-memory run
// history for the ops endpoints. Nothing is persisted between processes.
type RunRecord struct {
	ID           string        `json:"id"`
	Mode         RunMode       `json:"mode"`
	TargetDate   string        `json:"target_date"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Status       RunStatus     `json:"status"`
	Counts       SummaryCounts `json:"counts"`
	Report       string        `json:"report,omitempty"`
	Error        string        `json:"error,omitempty"`
	Delivered    bool          `json:"delivered"`
	SnapshotFile string        `json:"snapshot_file,omitempty"`
}
