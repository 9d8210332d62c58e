package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"unicode/utf8"

	"doc-analysis-platform/internal/apperrors"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// columnGap separates adjacent columns in a rendered table.
const columnGap = "  "

// extractCSV parses standard RFC 4180 quoting and tolerates records of
// varying length.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(stripBOM(data)))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatCSV), err)
	}
	return FormatTable(rows), nil
}

// extractXLSX renders the first worksheet in workbook order.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatXLSX), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatXLSX), err)
	}
	return FormatTable(rows), nil
}

// extractXLS renders the first worksheet of a legacy BIFF workbook.
func extractXLS(data []byte) (string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", apperrors.ExtractionFailed(string(FormatXLS), err)
	}
	if wb.NumSheets() == 0 {
		return "", nil
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return "", apperrors.ExtractionFailed(string(FormatXLS), errors.New("first sheet unreadable"))
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}

	return FormatTable(trimTrailingEmptyRows(rows)), nil
}

// FormatTable renders rows as a fixed-width table. The first row is the
// header. Cells are right-aligned to the widest value in their column,
// short rows are padded with empty cells, and embedded newlines are
// escaped so every record stays on one line.
func FormatTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	cells := make([][]string, len(rows))
	widths := make([]int, cols)
	for i, row := range rows {
		cells[i] = make([]string, cols)
		for j := 0; j < cols; j++ {
			var v string
			if j < len(row) {
				v = escapeCell(row[j])
			}
			cells[i][j] = v
			if w := utf8.RuneCountInString(v); w > widths[j] {
				widths[j] = w
			}
		}
	}

	lines := make([]string, len(cells))
	var b strings.Builder
	for i, row := range cells {
		b.Reset()
		for j, v := range row {
			if j > 0 {
				b.WriteString(columnGap)
			}
			b.WriteString(strings.Repeat(" ", widths[j]-utf8.RuneCountInString(v)))
			b.WriteString(v)
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

func escapeCell(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	return strings.ReplaceAll(v, "\n", `\n`)
}

func trimTrailingEmptyRows(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, c := range last {
			if c != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}
