package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func detailDataset() Dataset {
	return Dataset{
		Headers: []string{"name", "clock_in", "clock_out"},
		Rows: []map[string]string{
			{"name": "김철수", "clock_in": "08:55:00", "clock_out": "18:05:00"},
			{"name": "이영희", "clock_in": "09:20:00"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(detailDataset())
	require.NoError(t, err)

	text := string(payload)
	require.True(t, strings.HasPrefix(text, "\uFEFF"), "expected UTF-8 BOM")

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(text, "\uFEFF")), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "name,clock_in,clock_out", lines[0])
	require.Equal(t, "김철수,08:55:00,18:05:00", lines[1])
	require.Equal(t, "이영희,09:20:00,", lines[2])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestXLSXRenderRoundTrip(t *testing.T) {
	payload, err := NewXLSXExporter().Render(detailDataset(), "Attendance 2025-07-14")
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Attendance 2025-07-14")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"name", "clock_in", "clock_out"}, rows[0])
	require.Equal(t, "김철수", rows[1][0])
	require.Equal(t, "18:05:00", rows[1][2])
	require.Equal(t, "이영희", rows[2][0])
}

func TestXLSXRenderTruncatesSheetName(t *testing.T) {
	long := strings.Repeat("x", 40)
	payload, err := NewXLSXExporter().Render(detailDataset(), long)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer wb.Close()

	require.Equal(t, strings.Repeat("x", 31), wb.GetSheetName(0))
}

func TestPDFRenderProducesDocument(t *testing.T) {
	counts := Dataset{
		Headers: []string{"metric", "value"},
		Rows: []map[string]string{
			{"metric": "total", "value": "12"},
			{"metric": "target", "value": "10"},
			{"metric": "missing clock-in", "value": "1"},
		},
	}

	payload, err := NewPDFExporter().Render(counts, "Attendance 2025-07-14")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF-")))
	require.Greater(t, len(payload), 500)
}

func TestPDFRenderRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	require.Error(t, err)
}
