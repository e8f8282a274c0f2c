package sheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

// columnCandidates lists header labels per logical field in preference
// order. The portal report carries a two-row header; labels are matched
// case-insensitively against the flattened form, so both the grouped
// ("출퇴근_출근시간") and bare ("출근시간") variants are accepted.
var columnCandidates = map[string][]string{
	"erp":         {"ERP사번"},
	"name":        {"이름"},
	"date":        {"일자"},
	"dept":        {"부서"},
	"type":        {"근태_유형", "유형"},
	"category":    {"근태_구분", "구분"},
	"clock_in":    {"출퇴근_출근시간", "출근시간"},
	"clock_out":   {"출퇴근_퇴근시간", "퇴근시간"},
	"leave_start": {"휴가/출장/교육 일시_시작시간", "시작시간"},
	"leave_end":   {"휴가/출장/교육 일시_종료시간", "종료시간"},
}

// positionalFallbacks holds the historical column positions used when the
// labels cannot be found. The portal layout has been stable for years.
var positionalFallbacks = map[string]int{
	"date":        5,
	"clock_in":    11,
	"clock_out":   13,
	"leave_start": 16,
	"leave_end":   18,
}

var requiredColumns = []string{"erp", "name", "date", "type", "category", "clock_in", "clock_out", "leave_start", "leave_end"}

var dateHeaderPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ColumnIndex holds resolved zero-based column positions. Dept is -1 when
// the optional department column is absent.
type ColumnIndex struct {
	ERP        int
	Name       int
	Date       int
	Dept       int
	Type       int
	Category   int
	ClockIn    int
	ClockOut   int
	LeaveStart int
	LeaveEnd   int
}

// Reader extracts raw attendance rows from a downloaded workbook.
type Reader struct {
	logger *zap.Logger
}

// NewReader constructs a workbook reader. Logger may be nil.
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{logger: logger}
}

// Read opens workbook bytes and returns one RawRow per data row of the
// named sheet. The first two sheet rows form the header; employee ID and
// name are carried down over merged cells.
func (r *Reader) Read(data []byte, sheetName string) ([]models.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "open workbook")
	}
	defer f.Close()

	if !hasSheet(f, sheetName) {
		return nil, appErrors.Clone(appErrors.ErrSheetNotFound,
			fmt.Sprintf("sheet %q not found (available: %s)", sheetName, strings.Join(f.GetSheetList(), ", ")))
	}

	grid, err := f.GetRows(sheetName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSheetNotFound.Code, appErrors.ErrSheetNotFound.Status, "read sheet rows")
	}
	if len(grid) < 2 {
		return nil, appErrors.Clone(appErrors.ErrColumnMissing, fmt.Sprintf("sheet %q has no header rows", sheetName))
	}

	headers := flattenHeaders(grid[0], grid[1])
	r.logger.Sugar().Debugw("flattened workbook header", "columns", headers)

	index, err := resolveColumns(headers)
	if err != nil {
		return nil, err
	}

	rows := make([]models.RawRow, 0, len(grid)-2)
	lastID, lastName := "", ""
	for i := 2; i < len(grid); i++ {
		line := grid[i]
		if isBlankLine(line) {
			continue
		}
		sheetRow := i + 1

		id := cleanIdentity(cellAt(line, index.ERP))
		if id == "" {
			id = lastID
		} else {
			lastID = id
		}
		name := cleanIdentity(cellAt(line, index.Name))
		if name == "" {
			name = lastName
		} else {
			lastName = name
		}

		row := models.RawRow{
			EmployeeID: id,
			Name:       name,
			Type:       strings.TrimSpace(cellAt(line, index.Type)),
			Category:   strings.TrimSpace(cellAt(line, index.Category)),
			Date:       r.rawCell(f, sheetName, index.Date, sheetRow),
			ClockIn:    r.rawCell(f, sheetName, index.ClockIn, sheetRow),
			ClockOut:   r.rawCell(f, sheetName, index.ClockOut, sheetRow),
			LeaveStart: r.rawCell(f, sheetName, index.LeaveStart, sheetRow),
			LeaveEnd:   r.rawCell(f, sheetName, index.LeaveEnd, sheetRow),
		}
		if index.Dept >= 0 {
			row.Department = strings.TrimSpace(cellAt(line, index.Dept))
		}
		rows = append(rows, row)
	}

	r.logger.Sugar().Infow("workbook rows extracted", "sheet", sheetName, "rows", len(rows))
	return rows, nil
}

// rawCell reads a cell preserving its stored shape: numeric cells (plain
// numbers, date serials, day fractions) become NumberCell so the
// normalizer can interpret them, string cells stay text even when they
// look numeric ("0905" keeps its leading zero).
func (r *Reader) rawCell(f *excelize.File, sheet string, col, row int) models.RawCell {
	if col < 0 {
		return models.EmptyCell()
	}
	addr, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return models.EmptyCell()
	}
	raw, err := f.GetCellValue(sheet, addr, excelize.Options{RawCellValue: true})
	if err != nil {
		return models.EmptyCell()
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.EmptyCell()
	}
	cellType, err := f.GetCellType(sheet, addr)
	if err == nil {
		switch cellType {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
			return models.TextCell(raw)
		}
	}
	if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
		return models.NumberCell(v)
	}
	return models.TextCell(raw)
}

// flattenHeaders merges the two header rows into one label per column:
// both levels present and distinct join with "_", otherwise the non-empty
// level stands alone, and fully blank columns get a positional name.
func flattenHeaders(top, second []string) []string {
	width := len(top)
	if len(second) > width {
		width = len(second)
	}
	headers := make([]string, 0, width)
	for i := 0; i < width; i++ {
		level0 := cleanHeaderLevel(cellAt(top, i))
		level1 := cleanHeaderLevel(cellAt(second, i))
		var header string
		switch {
		case level0 != "" && level1 != "" && level0 != level1:
			header = level0 + "_" + level1
		case level1 != "":
			header = level1
		case level0 != "":
			header = level0
		default:
			header = fmt.Sprintf("col_%d", i)
		}
		headers = append(headers, strings.Trim(header, "_"))
	}
	return headers
}

func cleanHeaderLevel(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "Unnamed:") {
		return ""
	}
	return raw
}

// resolveColumns finds each logical field: by label first, then the date
// header that carries the date itself, then the historical positions, and
// fails naming everything it could not find alongside what it did.
func resolveColumns(headers []string) (ColumnIndex, error) {
	find := func(key string) int {
		for _, label := range columnCandidates[key] {
			for i, header := range headers {
				if strings.EqualFold(strings.TrimSpace(header), label) {
					return i
				}
			}
		}
		return -1
	}

	index := ColumnIndex{
		ERP:        find("erp"),
		Name:       find("name"),
		Date:       find("date"),
		Dept:       find("dept"),
		Type:       find("type"),
		Category:   find("category"),
		ClockIn:    find("clock_in"),
		ClockOut:   find("clock_out"),
		LeaveStart: find("leave_start"),
		LeaveEnd:   find("leave_end"),
	}

	if index.Date < 0 {
		for i, header := range headers {
			if dateHeaderPattern.MatchString(strings.TrimSpace(header)) {
				index.Date = i
				break
			}
		}
	}

	fallback := func(current int, key string) int {
		if current >= 0 {
			return current
		}
		if pos, ok := positionalFallbacks[key]; ok && pos < len(headers) {
			return pos
		}
		return -1
	}
	index.Date = fallback(index.Date, "date")
	index.ClockIn = fallback(index.ClockIn, "clock_in")
	index.ClockOut = fallback(index.ClockOut, "clock_out")
	index.LeaveStart = fallback(index.LeaveStart, "leave_start")
	index.LeaveEnd = fallback(index.LeaveEnd, "leave_end")

	resolved := map[string]int{
		"erp":         index.ERP,
		"name":        index.Name,
		"date":        index.Date,
		"type":        index.Type,
		"category":    index.Category,
		"clock_in":    index.ClockIn,
		"clock_out":   index.ClockOut,
		"leave_start": index.LeaveStart,
		"leave_end":   index.LeaveEnd,
	}
	var missing []string
	for _, key := range requiredColumns {
		if resolved[key] < 0 {
			missing = append(missing, fmt.Sprintf("%s (tried: %s)", key, strings.Join(columnCandidates[key], ", ")))
		}
	}
	if len(missing) > 0 {
		return ColumnIndex{}, appErrors.Clone(appErrors.ErrColumnMissing,
			fmt.Sprintf("required columns missing: %s; available columns: %s",
				strings.Join(missing, "; "), strings.Join(headers, ", ")))
	}
	return index, nil
}

func cleanIdentity(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "none") {
		return ""
	}
	return raw
}

func cellAt(line []string, i int) string {
	if i < 0 || i >= len(line) {
		return ""
	}
	return line[i]
}

func isBlankLine(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func hasSheet(f *excelize.File, name string) bool {
	for _, sheet := range f.GetSheetList() {
		if sheet == name {
			return true
		}
	}
	return false
}
