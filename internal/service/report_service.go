package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	"github.com/dgmosdaegu/work-day-bot/pkg/export"
)

const ruleWidth = 30

// ReportService renders an analysis result as the plain-text message body
// and as tabular datasets for snapshot export. Statuses are expected
// name-sorted; the renderer preserves their order.
type ReportService struct {
	logger *zap.Logger
}

// NewReportService constructs the renderer. Logger may be nil.
func NewReportService(logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{logger: logger}
}

// RenderText builds the two-block report: summary counts with the leave
// roster, then the numbered per-employee detail.
func (s *ReportService) RenderText(targetDate time.Time, mode models.RunMode, counts models.SummaryCounts, statuses []models.EmployeeStatus) string {
	dateStr := targetDate.Format("2006-01-02")
	checkWord := "clock-in"
	if mode == models.RunModeEvening {
		checkWord = "clock-out"
	}

	lines := make([]string, 0, len(statuses)+12)
	lines = append(lines, fmt.Sprintf("%s %s check summary", dateStr, checkWord))
	lines = append(lines, strings.Repeat("-", ruleWidth))
	lines = append(lines, fmt.Sprintf("total employees: %d (by name)", counts.TotalEmployees))
	lines = append(lines, fmt.Sprintf("to check: %d (excluded: %d)", counts.Target, counts.Excluded))
	lines = append(lines, fmt.Sprintf("clocked in: %d (missing or on morning leave: %d)", counts.ClockedIn, counts.MissingIn))
	lines = append(lines, fmt.Sprintf("clocked out: %d (missing or on afternoon leave: %d)", counts.ClockedOut, counts.MissingOut))

	var leaveLines []string
	for _, status := range statuses {
		if !status.TookAnyLeave {
			continue
		}
		desc := status.LeaveDescription
		if desc == "" {
			desc = "no details"
		}
		leaveLines = append(leaveLines, fmt.Sprintf("- %s: %s", status.Name, desc))
	}
	if len(leaveLines) > 0 {
		lines = append(lines, fmt.Sprintf("\non leave / excluded (%d):", len(leaveLines)))
		lines = append(lines, leaveLines...)
	} else {
		lines = append(lines, "\non leave / excluded: none")
	}

	lines = append(lines, "\n"+strings.Repeat("=", ruleWidth)+"\n")

	var detailLines []string
	for _, status := range statuses {
		if status.IsExcluded {
			continue
		}
		issueTag := ""
		if len(status.Issues) > 0 {
			labels := make([]string, len(status.Issues))
			for i, issue := range status.Issues {
				labels[i] = string(issue)
			}
			issueTag = fmt.Sprintf("[%s] ", strings.Join(labels, "/"))
		}
		detailLines = append(detailLines, fmt.Sprintf("%d. %s: %sin=%s, out=%s",
			len(detailLines)+1, status.Name, issueTag, status.ClockInDisplay, status.ClockOutDisplay))
	}

	switch {
	case len(detailLines) > 0:
		lines = append(lines, fmt.Sprintf("[%s check detail] (%d)", checkWord, len(detailLines)))
		lines = append(lines, strings.Repeat("-", ruleWidth))
		lines = append(lines, detailLines...)
	case counts.Target == 0 && counts.Excluded > 0:
		lines = append(lines, fmt.Sprintf("%s no one to check (all on leave or excluded).", dateStr))
	case counts.Target == 0:
		lines = append(lines, fmt.Sprintf("%s no one to check (no data).", dateStr))
	default:
		lines = append(lines, fmt.Sprintf("%s detail listing unavailable.", dateStr))
	}

	s.logger.Sugar().Debugw("report rendered",
		"date", dateStr,
		"mode", string(mode),
		"leave_lines", len(leaveLines),
		"detail_lines", len(detailLines),
	)
	return strings.Join(lines, "\n")
}

// RenderFailure is the one-line substitute sent when analysis never ran.
func (s *ReportService) RenderFailure(targetDate time.Time, err error) string {
	return fmt.Sprintf("%s analysis failed: %v", targetDate.Format("2006-01-02"), err)
}

// DetailDataset flattens per-employee statuses for CSV and XLSX snapshots.
func (s *ReportService) DetailDataset(report models.AnalysisReport) export.Dataset {
	dateStr := report.TargetDate.Format("2006-01-02")
	rows := make([]map[string]string, 0, len(report.Statuses))
	for _, status := range report.Statuses {
		kind := "target"
		if status.IsExcluded {
			kind = "excluded"
		}
		labels := make([]string, len(status.Issues))
		for i, issue := range status.Issues {
			labels[i] = string(issue)
		}
		rows = append(rows, map[string]string{
			"date":       dateStr,
			"name":       status.Name,
			"department": status.Department,
			"status":     kind,
			"leave":      status.LeaveDescription,
			"clock_in":   status.ClockInDisplay,
			"clock_out":  status.ClockOutDisplay,
			"issues":     strings.Join(labels, "/"),
		})
	}
	return export.Dataset{
		Headers: []string{"date", "name", "department", "status", "leave", "clock_in", "clock_out", "issues"},
		Rows:    rows,
	}
}

// SummaryDataset keeps to ASCII metric names so the PDF core fonts can
// render it; the full Korean detail lives in the CSV and XLSX forms.
func (s *ReportService) SummaryDataset(report models.AnalysisReport) export.Dataset {
	counts := report.Counts
	row := func(metric string, value int) map[string]string {
		return map[string]string{"metric": metric, "value": strconv.Itoa(value)}
	}
	return export.Dataset{
		Headers: []string{"metric", "value"},
		Rows: []map[string]string{
			row("total_employees", counts.TotalEmployees),
			row("target", counts.Target),
			row("excluded", counts.Excluded),
			row("clocked_in", counts.ClockedIn),
			row("missing_in", counts.MissingIn),
			row("clocked_out", counts.ClockedOut),
			row("missing_out", counts.MissingOut),
		},
	}
}
