package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"docstream-platform/internal/logger"
	"docstream-platform/models"
)

// xlsxMaxRowsPerSheet caps how many data rows of one sheet are rendered.
const xlsxMaxRowsPerSheet = 5000

// ParseXLSX renders each non-empty worksheet as one logical page, rows in
// the same "Header: value" form as CSV. Sheets that hold no data rows are
// skipped.
func ParseXLSX(data []byte) (*ParsedDocument, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "not a valid xlsx workbook", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	var pages []ParsedPage
	var warnings []string
	processed := 0
	var truncatedSheets []string

	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			logger.Warn("xlsx sheet read failed", "sheet", sheet, "error", err)
			warnings = append(warnings, fmt.Sprintf("sheet %q skipped: %v", sheet, err))
			continue
		}
		if len(rows) < 2 {
			continue
		}

		header := rows[0]
		dataRows := rows[1:]
		if len(dataRows) > xlsxMaxRowsPerSheet {
			dataRows = dataRows[:xlsxMaxRowsPerSheet]
			truncatedSheets = append(truncatedSheets, sheet)
		}

		var rendered []string
		for _, row := range dataRows {
			var fields []string
			for i, value := range row {
				value = strings.TrimSpace(value)
				if value == "" {
					continue
				}
				name := fmt.Sprintf("column %d", i+1)
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					name = strings.TrimSpace(header[i])
				}
				fields = append(fields, name+": "+value)
			}
			if len(fields) > 0 {
				rendered = append(rendered, strings.Join(fields, " | "))
			}
		}
		if len(rendered) == 0 {
			continue
		}

		text := fmt.Sprintf("[Sheet: %s]\n%s", sheet, strings.Join(rendered, "\n"))
		pages = append(pages, ParsedPage{PageNumber: len(pages) + 1, Text: text})
		processed++
	}

	metadata := map[string]any{
		"sheetCount":      len(sheets),
		"processedSheets": processed,
		"truncated":       len(truncatedSheets) > 0,
	}
	if len(truncatedSheets) > 0 {
		metadata["truncatedSheets"] = truncatedSheets
	}
	if len(warnings) > 0 {
		metadata["warnings"] = warnings
	}
	return finishDocument(pages, metadata, "xlsx"), nil
}
