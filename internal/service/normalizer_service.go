package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
)

// Spreadsheet serial dates count days from this origin (the 1900 date system
// with its leap-year quirk folded in).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Serial day numbers outside this window are not treated as dates. The range
// maps to roughly 1982 through 2064.
const (
	serialDateMin = 30000
	serialDateMax = 60000
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102", "01/02/2006"}

var clockLayouts = []string{"15:04:05", "15:04"}

var meridiemLayouts = []string{"3:04:05 PM", "3:04 PM"}

// NormalizerService turns raw spreadsheet cells into typed values. Parsing
// never aborts a run: blanks and placeholder tokens vanish silently, values
// that look like data but match no known format are logged and counted.
type NormalizerService struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNormalizerService builds the normalizer. Logger may be nil.
func NewNormalizerService(logger *zap.Logger, metrics *MetricsService) *NormalizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NormalizerService{logger: logger, metrics: metrics}
}

// NormalizeRows converts every raw row, keeping row count stable. Rows with
// unparseable cells survive with nil fields.
func (s *NormalizerService) NormalizeRows(rows []models.RawRow) []models.NormalizedRow {
	out := make([]models.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.NormalizedRow{
			EmployeeID:  strings.TrimSpace(row.EmployeeID),
			Name:        strings.TrimSpace(row.Name),
			Department:  strings.TrimSpace(row.Department),
			Date:        s.ParseDate(row.Date),
			Type:        strings.TrimSpace(row.Type),
			Category:    strings.TrimSpace(row.Category),
			ClockIn:     s.ParseTime(row.ClockIn, "clock_in"),
			ClockOut:    s.ParseTime(row.ClockOut, "clock_out"),
			LeaveStart:  s.ParseTime(row.LeaveStart, "leave_start"),
			LeaveEnd:    s.ParseTime(row.LeaveEnd, "leave_end"),
			RawClockIn:  rawDisplay(row.ClockIn),
			RawClockOut: rawDisplay(row.ClockOut),
		})
	}
	s.metrics.ObserveRows(len(out))
	return out
}

// ParseDate extracts a calendar date from a cell. Text dates may carry a
// trailing time component, which is discarded. Bare numbers in the serial
// window are day counts from the spreadsheet epoch.
func (s *NormalizerService) ParseDate(cell models.RawCell) *time.Time {
	switch cell.Kind {
	case models.CellEmpty, models.CellTime:
		return nil
	case models.CellDate:
		d := truncateToDay(cell.Date)
		return &d
	case models.CellNumber:
		return dateFromSerial(cell.Number)
	}

	raw := strings.TrimSpace(cell.Text)
	if isAbsentToken(raw) {
		return nil
	}

	candidate := raw
	if fields := strings.Fields(raw); len(fields) > 1 {
		candidate = fields[0]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			d := truncateToDay(t)
			return &d
		}
	}

	if v, err := strconv.ParseFloat(candidate, 64); err == nil {
		if d := dateFromSerial(v); d != nil {
			return d
		}
	}

	s.warnUnparsed("date", raw)
	return nil
}

// ParseTime extracts a wall-clock time from a cell. Accepted text forms are
// HH:MM[:SS], 12-hour with AM/PM, a full datetime (date part discarded), and
// bare HHMM / HHMMSS digit runs. Bare numbers are fractional-day values.
func (s *NormalizerService) ParseTime(cell models.RawCell, field string) *models.ClockTime {
	switch cell.Kind {
	case models.CellEmpty:
		return nil
	case models.CellTime:
		t := cell.Time
		return &t
	case models.CellDate:
		t := models.NewClockTime(cell.Date.Hour(), cell.Date.Minute(), cell.Date.Second())
		return &t
	case models.CellNumber:
		return clockFromFraction(cell.Number)
	}

	raw := strings.TrimSpace(cell.Text)
	if isAbsentToken(raw) {
		return nil
	}

	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return clockOf(t)
		}
	}

	upper := strings.ToUpper(raw)
	for _, layout := range meridiemLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return clockOf(t)
		}
	}

	// Full datetime string: the time rides in the last field.
	if fields := strings.Fields(raw); len(fields) > 1 {
		last := fields[len(fields)-1]
		if strings.Contains(last, ":") {
			for _, layout := range clockLayouts {
				if t, err := time.Parse(layout, last); err == nil {
					return clockOf(t)
				}
			}
		}
	}

	if isDigits(raw) {
		if t := clockFromDigits(raw); t != nil {
			return t
		}
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return clockFromFraction(v)
	}

	s.warnUnparsed(field, raw)
	return nil
}

// CombineDateTime anchors a wall-clock time on a calendar date. Nil unless
// both parts are present.
func CombineDateTime(date *time.Time, clock *models.ClockTime) *time.Time {
	if date == nil || clock == nil {
		return nil
	}
	t := clock.At(*date)
	return &t
}

func (s *NormalizerService) warnUnparsed(field, raw string) {
	// A value without digits is decoration, not a time or date someone
	// meant to record. Only digit-bearing failures are worth a signal.
	if !strings.ContainsAny(raw, "0123456789") {
		return
	}
	s.logger.Sugar().Warnw("unparseable cell value", "field", field, "value", raw)
	s.metrics.ObserveParseWarning()
}

// isAbsentToken matches the placeholder values the HR export writes into
// cells that hold no data.
func isAbsentToken(s string) bool {
	if s == "" || s == "-" {
		return true
	}
	switch strings.ToLower(s) {
	case "nan", "nat", "none", "null":
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clockFromDigits(s string) *models.ClockTime {
	var hour, minute, second int
	switch len(s) {
	case 4:
		hour, _ = strconv.Atoi(s[:2])
		minute, _ = strconv.Atoi(s[2:])
	case 6:
		hour, _ = strconv.Atoi(s[:2])
		minute, _ = strconv.Atoi(s[2:4])
		second, _ = strconv.Atoi(s[4:])
	default:
		return nil
	}
	if hour > 23 || minute > 59 || second > 59 {
		return nil
	}
	t := models.NewClockTime(hour, minute, second)
	return &t
}

// clockFromFraction decodes the spreadsheet time encoding: a fraction of one
// day. Values outside a single day clamp to its bounds.
func clockFromFraction(v float64) *models.ClockTime {
	seconds := int(math.Round(v * 86400))
	if seconds < 0 {
		seconds = 0
	}
	if seconds > 86399 {
		seconds = 86399
	}
	t := models.ClockTime(seconds)
	return &t
}

func clockOf(t time.Time) *models.ClockTime {
	c := models.NewClockTime(t.Hour(), t.Minute(), t.Second())
	return &c
}

func dateFromSerial(v float64) *time.Time {
	if v < serialDateMin || v > serialDateMax {
		return nil
	}
	d := serialEpoch.AddDate(0, 0, int(v))
	return &d
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rawDisplay preserves the original cell text for diagnostics.
func rawDisplay(cell models.RawCell) string {
	switch cell.Kind {
	case models.CellText:
		return strings.TrimSpace(cell.Text)
	case models.CellNumber:
		return strconv.FormatFloat(cell.Number, 'f', -1, 64)
	case models.CellDate:
		return cell.Date.Format("2006-01-02 15:04:05")
	case models.CellTime:
		return cell.Time.String()
	}
	return ""
}
