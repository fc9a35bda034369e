package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"docstream-platform/models"
)

const (
	csvRowsPerPage = 100
	csvMaxRows     = 10000
)

// ParseCSV renders each data row as a "Header: value" line so downstream
// chunks stay self-describing without the header row nearby. Ragged rows are
// tolerated; malformed rows are skipped and reported as warnings.
func ParseCSV(data []byte) (*ParsedDocument, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return finishDocument(nil, map[string]any{"rowCount": 0}, "csv"), nil
	}
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeParseFailed, "csv header read failed", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var renderedRows []string
	var warnings []string
	truncated := false
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			if len(warnings) < 20 {
				warnings = append(warnings, fmt.Sprintf("row %d skipped: %v", rowNum, err))
			}
			continue
		}
		if len(renderedRows) >= csvMaxRows {
			truncated = true
			break
		}

		var fields []string
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			name := fmt.Sprintf("column %d", i+1)
			if i < len(header) && header[i] != "" {
				name = header[i]
			}
			fields = append(fields, name+": "+value)
		}
		if len(fields) > 0 {
			renderedRows = append(renderedRows, strings.Join(fields, " | "))
		}
	}

	var pages []ParsedPage
	for start := 0; start < len(renderedRows); start += csvRowsPerPage {
		end := start + csvRowsPerPage
		if end > len(renderedRows) {
			end = len(renderedRows)
		}
		text := strings.Join(renderedRows[start:end], "\n")
		pages = append(pages, ParsedPage{PageNumber: len(pages) + 1, Text: text})
	}

	metadata := map[string]any{
		"rowCount":  len(renderedRows),
		"columns":   len(header),
		"truncated": truncated,
	}
	if len(warnings) > 0 {
		metadata["warnings"] = warnings
	}
	return finishDocument(pages, metadata, "csv"), nil
}
