package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
)

type workbookReader interface {
	Read(data []byte, sheetName string) ([]models.RawRow, error)
}

type rowNormalizer interface {
	NormalizeRows(rows []models.RawRow) []models.NormalizedRow
}

type vocabularyProvider interface {
	Current() models.LeaveVocabulary
}

type reportRenderer interface {
	RenderText(targetDate time.Time, mode models.RunMode, counts models.SummaryCounts, statuses []models.EmployeeStatus) string
	RenderFailure(targetDate time.Time, err error) string
}

// AttendanceService owns the classification core: workbook bytes in, one
// AnalysisReport out. Analyze never returns an error; failures degrade to
// a diagnostic report with the -1 headcount sentinel so the operator still
// gets a message through the usual channel.
type AttendanceService struct {
	reader     workbookReader
	normalizer rowNormalizer
	vocab      vocabularyProvider
	renderer   reportRenderer
	times      models.StandardTimes
	logger     *zap.Logger
}

// NewAttendanceService wires the analysis pipeline. Logger may be nil.
func NewAttendanceService(
	reader workbookReader,
	normalizer rowNormalizer,
	vocab vocabularyProvider,
	renderer reportRenderer,
	times models.StandardTimes,
	logger *zap.Logger,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		reader:     reader,
		normalizer: normalizer,
		vocab:      vocab,
		renderer:   renderer,
		times:      times,
		logger:     logger,
	}
}

// Analyze runs the full pipeline for one day: read the sheet, normalize,
// classify per employee, aggregate, render. Mode only affects wording.
func (s *AttendanceService) Analyze(data []byte, sheetName string, targetDate time.Time, mode models.RunMode) (report models.AnalysisReport) {
	report = models.AnalysisReport{TargetDate: targetDate, Mode: mode}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("analysis panicked", "error", r)
			report.Counts = models.SummaryCounts{TotalEmployees: -1}
			report.Statuses = nil
			report.Text = s.renderer.RenderFailure(targetDate, fmt.Errorf("%v", r))
		}
	}()

	rawRows, err := s.reader.Read(data, sheetName)
	if err != nil {
		s.logger.Sugar().Errorw("workbook read failed", "sheet", sheetName, "error", err)
		report.Counts.TotalEmployees = -1
		report.Text = s.renderer.RenderFailure(targetDate, err)
		return report
	}

	rows := s.normalizer.NormalizeRows(rawRows)

	dayRows := make([]models.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		if row.Date != nil && sameDate(*row.Date, targetDate) {
			dayRows = append(dayRows, row)
		}
	}
	s.logger.Sugar().Infow("rows selected for target date",
		"date", targetDate.Format("2006-01-02"),
		"total_rows", len(rows),
		"day_rows", len(dayRows),
	)

	// The headcount comes from distinct names while classification groups
	// by employee ID. The two disagree when IDs or names are blank; the
	// invariant check below surfaces that as a warning.
	nameSet := make(map[string]struct{})
	for _, row := range dayRows {
		if row.Name != "" {
			nameSet[row.Name] = struct{}{}
		}
	}

	report.TeamName = teamNameOf(dayRows)

	groups := make(map[string][]models.NormalizedRow)
	order := make([]string, 0)
	for _, row := range dayRows {
		id := row.EmployeeID
		if isBlankID(id) {
			continue
		}
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], row)
	}

	vocab := s.vocab.Current()

	statusByName := make(map[string]models.EmployeeStatus, len(order))
	for _, id := range order {
		group := groups[id]
		name := displayName(id, group)
		statusByName[name] = s.ClassifyEmployee(name, group, s.times, vocab)
	}

	statuses := make([]models.EmployeeStatus, 0, len(statusByName))
	for _, status := range statusByName {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	counts := deriveCounts(len(nameSet), statuses)
	s.checkCountInvariants(counts, len(statusByName))

	report.Counts = counts
	report.Statuses = statuses
	report.Text = s.renderer.RenderText(targetDate, mode, counts, statuses)
	return report
}

// ClassifyEmployee folds all of one employee's rows for the day into a
// single status. Vocabulary and standard times arrive as parameters so
// callers and tests can vary them freely.
func (s *AttendanceService) ClassifyEmployee(name string, rows []models.NormalizedRow, times models.StandardTimes, vocab models.LeaveVocabulary) models.EmployeeStatus {
	status := models.EmployeeStatus{
		Name:            name,
		Department:      firstDepartment(rows),
		ClockInDisplay:  "-",
		ClockOutDisplay: "-",
	}

	var leaves []models.LeaveEntry
	var record models.AttendanceRecord

	for _, row := range rows {
		if vocab.IsLeaveRow(row.Type, row.Category) {
			leaves = append(leaves, models.LeaveEntry{
				Type:        row.Type,
				Category:    row.Category,
				Start:       row.LeaveStart,
				End:         row.LeaveEnd,
				Description: leaveDescription(row.Type, row.Category),
			})
			continue
		}
		if row.Type == vocab.AttendanceType {
			// First clock-in and last clock-out of the day win.
			if row.ClockIn != nil && record.ClockIn == nil {
				record.ClockIn = row.ClockIn
				record.RawClockIn = row.RawClockIn
			}
			if row.ClockOut != nil {
				record.ClockOut = row.ClockOut
				record.RawClockOut = row.RawClockOut
			}
		}
	}

	status.TookAnyLeave = len(leaves) > 0

	var coversMorning, coversAfternoon bool
	var morningHalf, afternoonHalf bool
	var anyFullDay bool
	minStart, maxEnd := times.WorkEnd, times.WorkStart
	descSet := make(map[string]struct{}, len(leaves))

	for _, leave := range leaves {
		descSet[leave.Description] = struct{}{}
		if vocab.HasFullDayReason(leave.Category) || leave.Type == vocab.BusinessTrip {
			anyFullDay = true
		}

		var m, a bool
		switch {
		case leave.Category == vocab.MorningHalf:
			m = true
			morningHalf = true
		case leave.Category == vocab.AfternoonHalf:
			a = true
			afternoonHalf = true
		case vocab.HasFullDayReason(leave.Category) && spansWorkday(leave, times):
			m, a = true, true
		case leave.Start != nil && leave.End != nil:
			if *leave.Start <= times.WorkStart && *leave.End >= times.LunchStart {
				m = true
			}
			if *leave.Start < times.WorkEnd && *leave.End >= times.LunchEnd {
				a = true
			}
		case leave.Start != nil && leave.End == nil && leave.Type == vocab.BusinessTrip:
			m, a = true, true
		}

		if m {
			coversMorning = true
		}
		if a {
			coversAfternoon = true
		}
		if leave.Start != nil && *leave.Start < minStart {
			minStart = *leave.Start
		}
		if leave.End != nil && *leave.End > maxEnd {
			maxEnd = *leave.End
		}
	}

	status.CoversMorning = coversMorning
	status.CoversAfternoon = coversAfternoon
	status.IsExcluded = coversMorning && coversAfternoon

	if status.IsExcluded {
		suffix := ""
		if anyFullDay {
			suffix = " (all day)"
		} else if minStart != times.WorkEnd && maxEnd != times.WorkStart {
			suffix = fmt.Sprintf(" [%s-%s]", minStart.Short(), maxEnd.Short())
		}
		status.LeaveDescription = joinedDescriptions(descSet) + suffix
		return status
	}
	if status.TookAnyLeave {
		status.LeaveDescription = joinedDescriptions(descSet)
	}

	hasIn := record.ClockIn != nil
	hasOut := record.ClockOut != nil
	status.HasClockIn = hasIn
	status.HasClockOut = hasOut

	expectedStart := times.WorkStart
	if morningHalf {
		expectedStart = times.MorningHalfStart
	} else if coversMorning {
		expectedStart = times.LunchEnd
	}

	expectedEnd := times.WorkEnd
	if afternoonHalf {
		expectedEnd = times.AfternoonHalfEnd
	} else if coversAfternoon {
		expectedEnd = afternoonLeaveStart(leaves, times, vocab)
	}

	s.logger.Sugar().Debugw("expected window",
		"name", name,
		"covers_morning", coversMorning,
		"covers_afternoon", coversAfternoon,
		"expected_start", expectedStart.String(),
		"expected_end", expectedEnd.String(),
	)

	var issues []models.Issue
	if hasIn {
		if *record.ClockIn > expectedStart {
			issues = append(issues, models.IssueLate)
		}
	} else if !coversMorning {
		issues = append(issues, models.IssueMissingClockIn)
	}

	if hasOut {
		early := (!coversAfternoon && *record.ClockOut < times.WorkEnd) ||
			(coversAfternoon && *record.ClockOut < expectedEnd)
		if early {
			issues = append(issues, models.IssueEarlyLeave)
		}
	} else if !coversAfternoon && hasIn {
		issues = append(issues, models.IssueMissingClockOut)
	}
	status.Issues = issues

	switch {
	case hasIn:
		status.ClockInDisplay = record.ClockIn.String()
	case coversMorning:
		status.ClockInDisplay = "on morning leave"
	default:
		status.ClockInDisplay = "no record"
	}

	switch {
	case hasOut:
		status.ClockOutDisplay = record.ClockOut.String()
	case coversAfternoon:
		status.ClockOutDisplay = fmt.Sprintf("on afternoon leave (from %s)", expectedEnd.Short())
	case hasIn:
		status.ClockOutDisplay = "no record"
	case !coversMorning:
		status.ClockOutDisplay = "absent"
	}

	return status
}

// spansWorkday reports whether a full-day-reason entry keeps its full-day
// coverage. It does unless both times are present and fail to reach across
// the whole working window.
func spansWorkday(leave models.LeaveEntry, times models.StandardTimes) bool {
	if leave.Start == nil || leave.End == nil {
		return true
	}
	return *leave.Start <= times.WorkStart && *leave.End >= times.WorkEnd
}

// afternoonLeaveStart finds when the afternoon leave begins, which is when
// work is expected to stop. Only entries starting at or after lunch that
// themselves cover the afternoon qualify; without one, lunch start stands in.
func afternoonLeaveStart(leaves []models.LeaveEntry, times models.StandardTimes, vocab models.LeaveVocabulary) models.ClockTime {
	earliest := times.WorkEnd
	found := false
	for _, leave := range leaves {
		if leave.Start == nil || *leave.Start < times.LunchStart {
			continue
		}
		var covers bool
		switch {
		case leave.Category == vocab.AfternoonHalf:
			covers = true
		case vocab.HasFullDayReason(leave.Category):
			covers = true
		case *leave.Start < times.WorkEnd && leave.End != nil && *leave.End >= times.LunchEnd:
			covers = true
		case *leave.Start < times.WorkEnd && leave.End == nil && leave.Type == vocab.BusinessTrip:
			covers = true
		}
		if covers && *leave.Start < earliest {
			earliest = *leave.Start
			found = true
		}
	}
	if found {
		return earliest
	}
	return times.LunchStart
}

func deriveCounts(total int, statuses []models.EmployeeStatus) models.SummaryCounts {
	counts := models.SummaryCounts{TotalEmployees: total}
	for _, status := range statuses {
		if status.IsExcluded {
			counts.Excluded++
			continue
		}
		counts.Target++
		if status.HasClockIn {
			counts.ClockedIn++
		} else if !status.CoversMorning {
			counts.MissingIn++
		}
		if status.HasClockOut {
			counts.ClockedOut++
		} else if status.HasClockIn && !status.CoversAfternoon {
			counts.MissingOut++
		}
	}
	return counts
}

// checkCountInvariants logs the soft conservation checks. A violation
// signals a data anomaly (blank IDs, duplicate display names) or half-day
// targets whose clocks have not landed yet; it never blocks the report.
func (s *AttendanceService) checkCountInvariants(counts models.SummaryCounts, groupCount int) {
	if counts.Target+counts.Excluded != groupCount {
		s.logger.Sugar().Warnw("status count differs from group count",
			"groups", groupCount, "target", counts.Target, "excluded", counts.Excluded)
	}
	if counts.Target+counts.Excluded != counts.TotalEmployees {
		s.logger.Sugar().Warnw("target plus excluded differs from headcount",
			"total", counts.TotalEmployees, "target", counts.Target, "excluded", counts.Excluded)
	}
	if counts.ClockedIn+counts.MissingIn != counts.Target {
		s.logger.Sugar().Warnw("clock-in counts do not cover all targets",
			"target", counts.Target, "clocked_in", counts.ClockedIn, "missing_in", counts.MissingIn)
	}
	if counts.ClockedOut+counts.MissingOut != counts.ClockedIn {
		s.logger.Sugar().Warnw("clock-out counts do not cover all clocked in",
			"clocked_in", counts.ClockedIn, "clocked_out", counts.ClockedOut, "missing_out", counts.MissingOut)
	}
}

func leaveDescription(activityType, category string) string {
	if category != "" && category != "-" {
		return fmt.Sprintf("%s (%s)", activityType, category)
	}
	return activityType
}

func joinedDescriptions(descSet map[string]struct{}) string {
	descs := make([]string, 0, len(descSet))
	for desc := range descSet {
		descs = append(descs, desc)
	}
	sort.Strings(descs)
	return strings.Join(descs, " + ")
}

func displayName(id string, rows []models.NormalizedRow) string {
	if len(rows) > 0 && rows[0].Name != "" {
		return rows[0].Name
	}
	return "ID:" + id
}

func firstDepartment(rows []models.NormalizedRow) string {
	for _, row := range rows {
		if row.Department != "" {
			return row.Department
		}
	}
	return ""
}

// teamNameOf extracts a short team label from the first department value.
// Departments arrive as "division-team"; a short undashed value is used
// whole and anything else is dropped.
func teamNameOf(rows []models.NormalizedRow) string {
	dept := firstDepartment(rows)
	if dept == "" {
		return ""
	}
	if strings.Contains(dept, "-") {
		left, right, _ := strings.Cut(dept, "-")
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if right != "" {
			return right
		}
		return left
	}
	if len([]rune(dept)) < 20 {
		return dept
	}
	return ""
}

func isBlankID(id string) bool {
	if id == "" {
		return true
	}
	switch strings.ToLower(id) {
	case "nan", "none", "null":
		return true
	}
	return false
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
