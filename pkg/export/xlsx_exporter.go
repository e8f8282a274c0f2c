package export

import (
	"bytes"
	"fmt"

	"github.com/tealeg/xlsx"
)

// XLSXExporter renders datasets into a single-sheet Excel workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces workbook bytes with one sheet named after the title.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	sheetName := title
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	// Excel rejects sheet names longer than 31 characters.
	if len([]rune(sheetName)) > 31 {
		sheetName = string([]rune(sheetName)[:31])
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("add xlsx sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range data.Headers {
		cell := headerRow.AddCell()
		cell.Value = header
	}

	for _, row := range data.Rows {
		xRow := sheet.AddRow()
		for _, header := range data.Headers {
			cell := xRow.AddCell()
			cell.Value = row[header]
		}
	}

	buf := &bytes.Buffer{}
	if err := file.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
