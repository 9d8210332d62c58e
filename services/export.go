package services

import (
	"bytes"
	"context"
	"fmt"

	"doc-analysis-platform/internal/apperrors"
	"doc-analysis-platform/models"

	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var historyHeaders = []string{"File ID", "Filename", "Uploaded At", "Analysis ID", "Analyzed At", "Analysis"}

// ExportHistoryXLSX writes the user's history as a workbook, one row per
// upload, newest first.
func (s *FileService) ExportHistoryXLSX(ctx context.Context, userID int64) (*Export, error) {
	items, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := historyWorkbook(items)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "failed to build history export", err)
	}
	return &Export{
		Filename:    "analysis_history.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func historyWorkbook(items []models.FileWithResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	for i, header := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(historySheet, cell, header); err != nil {
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(historySheet, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for rowIdx, item := range items {
		row := []interface{}{
			item.ID,
			item.Filename,
			item.UploadTimestamp.UTC().Format("2006-01-02 15:04:05"),
			"", "", "",
		}
		if item.AIResponse != nil {
			row[3] = item.AIResponse.ID
			row[4] = item.AIResponse.AnalysisTimestamp.UTC().Format("2006-01-02 15:04:05")
			row[5] = item.AIResponse.ResponseText
		}

		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", rowIdx+2, err)
		}
	}

	if err := f.SetColWidth(historySheet, "A", "E", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(historySheet, "F", "F", 80); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
