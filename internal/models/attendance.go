package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day stored as seconds since midnight.
type ClockTime int

// NewClockTime builds a ClockTime from hour, minute and second components.
func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*3600 + minute*60 + second)
}

// ParseClock parses strict "HH:MM" or "HH:MM:SS" strings. Configuration
// values use this; spreadsheet cells go through the normalizer instead.
func ParseClock(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	nums := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q", raw)
		}
		nums[i] = n
	}
	if nums[0] < 0 || nums[0] > 23 || nums[1] < 0 || nums[1] > 59 || nums[2] < 0 || nums[2] > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return NewClockTime(nums[0], nums[1], nums[2]), nil
}

// Hour returns the hour component.
func (t ClockTime) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t ClockTime) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component.
func (t ClockTime) Second() int { return int(t) % 60 }

// String renders the time as HH:MM:SS.
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Short renders the time as HH:MM.
func (t ClockTime) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// At anchors the clock time on the given calendar date.
func (t ClockTime) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, date.Location())
}

// CellKind discriminates raw spreadsheet cell payloads.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
	CellTime
)

// RawCell is a spreadsheet cell as delivered by the workbook reader: plain
// text, a bare number (serial dates and fractional-day times arrive this
// way), a native date or time, or nothing. Exactly one payload field is
// meaningful, selected by Kind.
type RawCell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
	Time   ClockTime
}

// TextCell wraps a string cell.
func TextCell(s string) RawCell { return RawCell{Kind: CellText, Text: s} }

// NumberCell wraps a numeric cell.
func NumberCell(v float64) RawCell { return RawCell{Kind: CellNumber, Number: v} }

// DateCell wraps a native date cell.
func DateCell(t time.Time) RawCell { return RawCell{Kind: CellDate, Date: t} }

// TimeCell wraps a native time-of-day cell.
func TimeCell(t ClockTime) RawCell { return RawCell{Kind: CellTime, Time: t} }

// EmptyCell is the absent-value cell.
func EmptyCell() RawCell { return RawCell{Kind: CellEmpty} }

// IsEmpty reports whether the cell carries no usable payload.
func (c RawCell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellText && strings.TrimSpace(c.Text) == "")
}

// RawRow is one spreadsheet line for one employee on one date, cells still
// in their delivered form. Several rows per employee per date are normal:
// one for the clock-in/out event plus one per leave taken.
type RawRow struct {
	EmployeeID string
	Name       string
	Department string
	Date       RawCell
	Type       string
	Category   string
	ClockIn    RawCell
	ClockOut   RawCell
	LeaveStart RawCell
	LeaveEnd   RawCell
}

// NormalizedRow is a RawRow with date and time cells parsed. Nil means the
// cell was absent or unparseable; a parse failure never aborts the run.
type NormalizedRow struct {
	EmployeeID  string
	Name        string
	Department  string
	Date        *time.Time
	Type        string
	Category    string
	ClockIn     *ClockTime
	ClockOut    *ClockTime
	LeaveStart  *ClockTime
	LeaveEnd    *ClockTime
	RawClockIn  string
	RawClockOut string
}

// LeaveEntry is one leave or absence activity for an employee on the target
// date. Start and End stay nil when the export gave no times.
type LeaveEntry struct {
	Type        string
	Category    string
	Start       *ClockTime
	End         *ClockTime
	Description string
}

// AttendanceRecord is the single logical clock-in/out record per employee
// per day. When several rows qualify, the first non-nil clock-in and the
// last non-nil clock-out win.
type AttendanceRecord struct {
	ClockIn     *ClockTime
	ClockOut    *ClockTime
	RawClockIn  string
	RawClockOut string
}

// Issue flags one attendance problem on a non-excluded employee.
type Issue string

const (
	IssueLate            Issue = "LATE"
	IssueEarlyLeave      Issue = "EARLY_LEAVE"
	IssueMissingClockIn  Issue = "MISSING_CLOCK_IN"
	IssueMissingClockOut Issue = "MISSING_CLOCK_OUT"
)

// EmployeeStatus is the per-employee verdict for the target date.
// IsExcluded is derived strictly from the two coverage flags; excluded
// employees carry no issues.
type EmployeeStatus struct {
	Name             string  `json:"name"`
	Department       string  `json:"department,omitempty"`
	IsExcluded       bool    `json:"is_excluded"`
	CoversMorning    bool    `json:"covers_morning"`
	CoversAfternoon  bool    `json:"covers_afternoon"`
	TookAnyLeave     bool    `json:"took_any_leave"`
	LeaveDescription string  `json:"leave_description,omitempty"`
	HasClockIn       bool    `json:"has_clock_in"`
	HasClockOut      bool    `json:"has_clock_out"`
	ClockInDisplay   string  `json:"clock_in_display"`
	ClockOutDisplay  string  `json:"clock_out_display"`
	Issues           []Issue `json:"issues,omitempty"`
}

// HasIssue reports whether the status carries the given issue flag.
func (s EmployeeStatus) HasIssue(issue Issue) bool {
	for _, i := range s.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

// SummaryCounts aggregates one run. TotalEmployees is -1 when analysis
// could not run at all (sheet or required columns missing).
type SummaryCounts struct {
	TotalEmployees int `json:"total_employees"`
	Target         int `json:"target"`
	Excluded       int `json:"excluded"`
	ClockedIn      int `json:"clocked_in"`
	MissingIn      int `json:"missing_in"`
	ClockedOut     int `json:"clocked_out"`
	MissingOut     int `json:"missing_out"`
}

// RunMode selects the morning or evening report wording.
type RunMode string

const (
	RunModeAuto    RunMode = "auto"
	RunModeMorning RunMode = "morning"
	RunModeEvening RunMode = "evening"
)

// Valid reports whether the mode is one of the accepted values.
func (m RunMode) Valid() bool {
	switch m {
	case RunModeAuto, RunModeMorning, RunModeEvening:
		return true
	}
	return false
}

// Resolve maps auto to morning or evening by comparing the hour of now
// against the evening threshold. Explicit modes pass through.
func (m RunMode) Resolve(now time.Time, eveningThresholdHour int) RunMode {
	switch m {
	case RunModeMorning, RunModeEvening:
		return m
	}
	if now.Hour() >= eveningThresholdHour {
		return RunModeEvening
	}
	return RunModeMorning
}

// AnalysisReport is the outcome of analyzing one day's workbook.
type AnalysisReport struct {
	TargetDate time.Time        `json:"target_date"`
	Mode       RunMode          `json:"mode"`
	TeamName   string           `json:"team_name,omitempty"`
	Counts     SummaryCounts    `json:"counts"`
	Statuses   []EmployeeStatus `json:"statuses,omitempty"`
	Text       string           `json:"text"`
}

// Failed reports whether analysis could not run; Counts carries the -1
// sentinel in that case and Text holds the diagnostic instead of a report.
func (r AnalysisReport) Failed() bool { return r.Counts.TotalEmployees < 0 }

// StandardTimes is the standard workday against which attendance is judged.
// Morning is [WorkStart, LunchStart), afternoon is [LunchEnd, WorkEnd).
type StandardTimes struct {
	WorkStart            ClockTime
	WorkEnd              ClockTime
	LunchStart           ClockTime
	LunchEnd             ClockTime
	MorningHalfStart     ClockTime
	AfternoonHalfEnd     ClockTime
	EveningThresholdHour int
}

// DefaultStandardTimes mirrors the observed HR export: 09:00-18:00 work,
// 12:00-13:00 lunch, half-day pivot at 14:00, evening runs from hour 18.
func DefaultStandardTimes() StandardTimes {
	return StandardTimes{
		WorkStart:            NewClockTime(9, 0, 0),
		WorkEnd:              NewClockTime(18, 0, 0),
		LunchStart:           NewClockTime(12, 0, 0),
		LunchEnd:             NewClockTime(13, 0, 0),
		MorningHalfStart:     NewClockTime(14, 0, 0),
		AfternoonHalfEnd:     NewClockTime(14, 0, 0),
		EveningThresholdHour: 18,
	}
}
