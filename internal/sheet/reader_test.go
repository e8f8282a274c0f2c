package sheet

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

const testSheet = "세부현황_B"

func buildWorkbook(t *testing.T, sheetName string, cells map[string]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet(sheetName)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))
	for addr, value := range cells {
		require.NoError(t, f.SetCellValue(sheetName, addr, value))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func headerCells() map[string]interface{} {
	return map[string]interface{}{
		"A1": "ERP사번", "B1": "이름", "C1": "부서", "D1": "일자",
		"E1": "근태", "G1": "출퇴근", "I1": "휴가/출장/교육 일시",
		"E2": "유형", "F2": "구분", "G2": "출근시간", "H2": "퇴근시간",
		"I2": "시작시간", "J2": "종료시간",
	}
}

func TestReadExtractsRows(t *testing.T) {
	cells := headerCells()
	// Attendance row with string times.
	cells["A3"] = 1001
	cells["B3"] = "김철수"
	cells["C3"] = "미래사업부-운영팀"
	cells["D3"] = "2025-07-14"
	cells["E3"] = "출퇴근"
	cells["F3"] = "-"
	cells["G3"] = "08:55:00"
	cells["H3"] = "18:02:00"
	// Leave row for the same employee, ID and name left blank by the
	// merged-cell layout.
	cells["D4"] = "2025-07-14"
	cells["E4"] = "법정휴가"
	cells["F4"] = "연차"
	cells["I4"] = "09:00"
	cells["J4"] = "18:00"
	// Second employee with numeric date serial and day-fraction clock-in.
	cells["A5"] = 1002
	cells["B5"] = "이영희"
	cells["D5"] = 45852
	cells["E5"] = "출퇴근"
	cells["G5"] = 0.3784722222222222

	data := buildWorkbook(t, testSheet, cells)
	reader := NewReader(zap.NewNop())

	rows, err := reader.Read(data, testSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "1001", rows[0].EmployeeID)
	require.Equal(t, "김철수", rows[0].Name)
	require.Equal(t, "미래사업부-운영팀", rows[0].Department)
	require.Equal(t, models.CellText, rows[0].Date.Kind)
	require.Equal(t, "2025-07-14", rows[0].Date.Text)
	require.Equal(t, "출퇴근", rows[0].Type)
	require.Equal(t, "-", rows[0].Category)
	require.Equal(t, models.CellText, rows[0].ClockIn.Kind)
	require.Equal(t, "08:55:00", rows[0].ClockIn.Text)

	// Blank identity cells inherit the previous row.
	require.Equal(t, "1001", rows[1].EmployeeID)
	require.Equal(t, "김철수", rows[1].Name)
	require.Equal(t, "법정휴가", rows[1].Type)
	require.Equal(t, "연차", rows[1].Category)
	require.Equal(t, models.CellText, rows[1].LeaveStart.Kind)
	require.True(t, rows[1].ClockIn.IsEmpty())

	require.Equal(t, "1002", rows[2].EmployeeID)
	require.Equal(t, models.CellNumber, rows[2].Date.Kind)
	require.InDelta(t, 45852, rows[2].Date.Number, 0.001)
	require.Equal(t, models.CellNumber, rows[2].ClockIn.Kind)
	require.InDelta(t, 0.3784722222222222, rows[2].ClockIn.Number, 0.0000001)
	require.True(t, rows[2].ClockOut.IsEmpty())
}

func TestReadMissingSheet(t *testing.T) {
	data := buildWorkbook(t, "다른시트", map[string]interface{}{"A1": "x"})
	reader := NewReader(zap.NewNop())

	_, err := reader.Read(data, testSheet)

	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrSheetNotFound))
	require.Contains(t, err.Error(), "다른시트")
}

func TestReadMissingColumns(t *testing.T) {
	data := buildWorkbook(t, testSheet, map[string]interface{}{
		"A1": "foo", "B1": "bar", "C1": "baz",
		"A2": "", "B2": "", "C2": "",
		"A3": "1", "B3": "2", "C3": "3",
	})
	reader := NewReader(zap.NewNop())

	_, err := reader.Read(data, testSheet)

	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrColumnMissing))
	require.Contains(t, err.Error(), "erp (tried: ERP사번)")
	require.Contains(t, err.Error(), "available columns")
}

func TestReadHeaderOnlySheet(t *testing.T) {
	data := buildWorkbook(t, testSheet, headerCells())
	reader := NewReader(zap.NewNop())

	rows, err := reader.Read(data, testSheet)

	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestReadCorruptPayload(t *testing.T) {
	reader := NewReader(zap.NewNop())

	_, err := reader.Read([]byte("<html>login required</html>"), testSheet)

	require.Error(t, err)
}

func TestFlattenHeaders(t *testing.T) {
	top := []string{"ERP사번", "근태", "", "Unnamed: 3_level_0", ""}
	second := []string{"", "유형", "구분", "비고", ""}

	headers := flattenHeaders(top, second)

	require.Equal(t, []string{"ERP사번", "근태_유형", "구분", "비고", "col_4"}, headers)
}

func TestFlattenHeadersSameLevels(t *testing.T) {
	headers := flattenHeaders([]string{"일자"}, []string{"일자"})
	require.Equal(t, []string{"일자"}, headers)
}

func TestResolveColumnsPositionalFallback(t *testing.T) {
	headers := make([]string, 20)
	for i := range headers {
		headers[i] = "" // becomes col_n in real flatten; bare is enough here
	}
	headers[0] = "ERP사번"
	headers[1] = "이름"
	headers[2] = "유형"
	headers[3] = "구분"

	index, err := resolveColumns(headers)

	require.NoError(t, err)
	require.Equal(t, 5, index.Date)
	require.Equal(t, 11, index.ClockIn)
	require.Equal(t, 13, index.ClockOut)
	require.Equal(t, 16, index.LeaveStart)
	require.Equal(t, 18, index.LeaveEnd)
	require.Equal(t, -1, index.Dept)
}

func TestResolveColumnsDateHeaderFallback(t *testing.T) {
	headers := []string{"ERP사번", "이름", "유형", "구분", "2025-07-14", "출근시간", "퇴근시간", "시작시간", "종료시간"}

	index, err := resolveColumns(headers)

	require.NoError(t, err)
	require.Equal(t, 4, index.Date)
}

func TestResolveColumnsCaseInsensitive(t *testing.T) {
	headers := []string{"erp사번", "이름", "일자", "유형", "구분", "출근시간", "퇴근시간", "시작시간", "종료시간"}

	index, err := resolveColumns(headers)

	require.NoError(t, err)
	require.Equal(t, 0, index.ERP)
}
