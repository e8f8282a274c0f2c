package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
)

func newReportServiceForTest(t *testing.T) *ReportService {
	t.Helper()
	return NewReportService(zap.NewNop())
}

func TestRenderTextMorning(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	statuses := []models.EmployeeStatus{
		{
			Name:            "김철수",
			HasClockIn:      true,
			HasClockOut:     true,
			ClockInDisplay:  "09:15:00",
			ClockOutDisplay: "18:00:00",
			Issues:          []models.Issue{models.IssueLate},
		},
		{
			Name:             "박민수",
			IsExcluded:       true,
			CoversMorning:    true,
			CoversAfternoon:  true,
			TookAnyLeave:     true,
			LeaveDescription: "법정휴가 (연차) (all day)",
			ClockInDisplay:   "-",
			ClockOutDisplay:  "-",
		},
		{
			Name:            "이영희",
			HasClockIn:      true,
			HasClockOut:     true,
			ClockInDisplay:  "08:55:00",
			ClockOutDisplay: "18:02:00",
		},
	}
	counts := models.SummaryCounts{
		TotalEmployees: 3,
		Target:         2,
		Excluded:       1,
		ClockedIn:      2,
		ClockedOut:     2,
	}

	got := svc.RenderText(targetDate, models.RunModeMorning, counts, statuses)

	want := strings.Join([]string{
		"2025-07-14 clock-in check summary",
		strings.Repeat("-", 30),
		"total employees: 3 (by name)",
		"to check: 2 (excluded: 1)",
		"clocked in: 2 (missing or on morning leave: 0)",
		"clocked out: 2 (missing or on afternoon leave: 0)",
		"\non leave / excluded (1):",
		"- 박민수: 법정휴가 (연차) (all day)",
		"\n" + strings.Repeat("=", 30) + "\n",
		"[clock-in check detail] (2)",
		strings.Repeat("-", 30),
		"1. 김철수: [LATE] in=09:15:00, out=18:00:00",
		"2. 이영희: in=08:55:00, out=18:02:00",
	}, "\n")
	require.Equal(t, want, got)
}

func TestRenderTextEveningAllExcluded(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	statuses := []models.EmployeeStatus{
		{Name: "김철수", IsExcluded: true, TookAnyLeave: true, LeaveDescription: "출장 (all day)"},
		{Name: "이영희", IsExcluded: true, TookAnyLeave: true, LeaveDescription: "법정휴가 (연차) (all day)"},
	}
	counts := models.SummaryCounts{TotalEmployees: 2, Excluded: 2}

	got := svc.RenderText(targetDate, models.RunModeEvening, counts, statuses)

	require.True(t, strings.HasPrefix(got, "2025-07-14 clock-out check summary"))
	require.Contains(t, got, "\non leave / excluded (2):")
	require.Contains(t, got, "- 김철수: 출장 (all day)")
	require.Contains(t, got, "2025-07-14 no one to check (all on leave or excluded).")
	require.NotContains(t, got, "check detail")
}

func TestRenderTextNoData(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	got := svc.RenderText(targetDate, models.RunModeMorning, models.SummaryCounts{}, nil)

	require.Contains(t, got, "total employees: 0 (by name)")
	require.Contains(t, got, "\non leave / excluded: none")
	require.Contains(t, got, "2025-07-14 no one to check (no data).")
}

func TestRenderTextLeaveTakerWithoutExclusion(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	statuses := []models.EmployeeStatus{
		{
			Name:             "박민수",
			TookAnyLeave:     true,
			CoversMorning:    true,
			LeaveDescription: "법정휴가 (오전반차)",
			HasClockIn:       true,
			ClockInDisplay:   "13:30:00",
			ClockOutDisplay:  "no record",
			Issues:           []models.Issue{models.IssueMissingClockOut},
		},
	}
	counts := models.SummaryCounts{TotalEmployees: 1, Target: 1, ClockedIn: 1, MissingOut: 1}

	got := svc.RenderText(targetDate, models.RunModeEvening, counts, statuses)

	require.Contains(t, got, "- 박민수: 법정휴가 (오전반차)")
	require.Contains(t, got, "1. 박민수: [MISSING_CLOCK_OUT] in=13:30:00, out=no record")
}

func TestRenderTextJoinsMultipleIssues(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	statuses := []models.EmployeeStatus{
		{
			Name:            "최지훈",
			HasClockIn:      true,
			HasClockOut:     true,
			ClockInDisplay:  "09:21:00",
			ClockOutDisplay: "17:12:00",
			Issues:          []models.Issue{models.IssueLate, models.IssueEarlyLeave},
		},
	}
	counts := models.SummaryCounts{TotalEmployees: 1, Target: 1, ClockedIn: 1, ClockedOut: 1}

	got := svc.RenderText(targetDate, models.RunModeMorning, counts, statuses)

	require.Contains(t, got, "1. 최지훈: [LATE/EARLY_LEAVE] in=09:21:00, out=17:12:00")
}

func TestRenderFailure(t *testing.T) {
	svc := newReportServiceForTest(t)
	targetDate := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	got := svc.RenderFailure(targetDate, errors.New("required columns missing: date"))

	require.Equal(t, "2025-07-14 analysis failed: required columns missing: date", got)
}

func TestDetailDataset(t *testing.T) {
	svc := newReportServiceForTest(t)
	report := models.AnalysisReport{
		TargetDate: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		Statuses: []models.EmployeeStatus{
			{
				Name:            "김철수",
				Department:      "미래사업부-운영팀",
				HasClockIn:      true,
				ClockInDisplay:  "09:15:00",
				ClockOutDisplay: "no record",
				Issues:          []models.Issue{models.IssueLate, models.IssueMissingClockOut},
			},
			{
				Name:             "박민수",
				IsExcluded:       true,
				TookAnyLeave:     true,
				LeaveDescription: "법정휴가 (연차) (all day)",
				ClockInDisplay:   "-",
				ClockOutDisplay:  "-",
			},
		},
	}

	data := svc.DetailDataset(report)

	require.Equal(t, []string{"date", "name", "department", "status", "leave", "clock_in", "clock_out", "issues"}, data.Headers)
	require.Len(t, data.Rows, 2)
	require.Equal(t, "2025-07-14", data.Rows[0]["date"])
	require.Equal(t, "target", data.Rows[0]["status"])
	require.Equal(t, "LATE/MISSING_CLOCK_OUT", data.Rows[0]["issues"])
	require.Equal(t, "excluded", data.Rows[1]["status"])
	require.Equal(t, "법정휴가 (연차) (all day)", data.Rows[1]["leave"])
	require.Empty(t, data.Rows[1]["issues"])
}

func TestSummaryDataset(t *testing.T) {
	svc := newReportServiceForTest(t)
	report := models.AnalysisReport{
		Counts: models.SummaryCounts{
			TotalEmployees: 5,
			Target:         4,
			Excluded:       1,
			ClockedIn:      3,
			MissingIn:      1,
			ClockedOut:     2,
			MissingOut:     1,
		},
	}

	data := svc.SummaryDataset(report)

	require.Equal(t, []string{"metric", "value"}, data.Headers)
	require.Len(t, data.Rows, 7)
	require.Equal(t, "total_employees", data.Rows[0]["metric"])
	require.Equal(t, "5", data.Rows[0]["value"])
	require.Equal(t, "missing_out", data.Rows[6]["metric"])
	require.Equal(t, "1", data.Rows[6]["value"])
}
