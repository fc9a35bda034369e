package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	first := true
	for name, rows := range sheets {
		if first {
			if err := wb.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else {
			if _, err := wb.NewSheet(name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSXSheetsBecomePages(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"People": {
			{"Name", "Role"},
			{"Ada", "Engineer"},
			{"Grace", "Admiral"},
		},
		"Cities": {
			{"City", "Country"},
			{"London", "UK"},
		},
	})

	doc, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX failed: %v", err)
	}
	if doc.PageCount != 2 {
		t.Fatalf("got %d pages, want one per sheet", doc.PageCount)
	}
	if doc.Metadata["sheetCount"] != 2 || doc.Metadata["processedSheets"] != 2 {
		t.Errorf("sheet metadata = %v / %v", doc.Metadata["sheetCount"], doc.Metadata["processedSheets"])
	}

	var peoplePage *ParsedPage
	for i := range doc.Pages {
		if strings.HasPrefix(doc.Pages[i].Text, "[Sheet: People]") {
			peoplePage = &doc.Pages[i]
		}
	}
	if peoplePage == nil {
		t.Fatal("no page for the People sheet")
	}
	if !strings.Contains(peoplePage.Text, "Name: Ada | Role: Engineer") {
		t.Errorf("People page missing rendered row: %q", peoplePage.Text)
	}
}

func TestParseXLSXSkipsHeaderOnlySheets(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Data": {
			{"A", "B"},
			{"1", "2"},
		},
		"Empty": {
			{"OnlyHeaders", "Here"},
		},
	})

	doc, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("header-only sheet should be skipped, got %d pages", doc.PageCount)
	}
	if doc.Metadata["sheetCount"] != 2 {
		t.Errorf("sheetCount = %v", doc.Metadata["sheetCount"])
	}
	if doc.Metadata["processedSheets"] != 1 {
		t.Errorf("processedSheets = %v", doc.Metadata["processedSheets"])
	}
}

func TestParseXLSXRecordsTruncationPerSheet(t *testing.T) {
	big := [][]any{{"ID"}}
	for i := 0; i < xlsxMaxRowsPerSheet+1; i++ {
		big = append(big, []any{i})
	}
	data := buildWorkbook(t, map[string][][]any{
		"Big": big,
		"Small": {
			{"Name"},
			{"Ada"},
		},
	})

	doc, err := ParseXLSX(data)
	if err != nil {
		t.Fatalf("ParseXLSX failed: %v", err)
	}
	if doc.Metadata["truncated"] != true {
		t.Errorf("truncated = %v, want true", doc.Metadata["truncated"])
	}
	sheets, ok := doc.Metadata["truncatedSheets"].([]string)
	if !ok {
		t.Fatalf("truncatedSheets missing or wrong type: %v", doc.Metadata["truncatedSheets"])
	}
	if len(sheets) != 1 || sheets[0] != "Big" {
		t.Errorf("truncatedSheets = %v, want [Big]", sheets)
	}

	for i := range doc.Pages {
		if strings.HasPrefix(doc.Pages[i].Text, "[Sheet: Big]") {
			rows := strings.Count(doc.Pages[i].Text, "\n")
			if rows != xlsxMaxRowsPerSheet {
				t.Errorf("Big sheet rendered %d rows, want %d", rows, xlsxMaxRowsPerSheet)
			}
		}
	}
}

func TestParseXLSXCorruptInput(t *testing.T) {
	_, err := ParseXLSX([]byte("not a workbook"))
	if err == nil {
		t.Fatal("expected error for corrupt input")
	}
	if ClassifyError(err) != "file_corrupted" {
		t.Errorf("got code %s, want file_corrupted", ClassifyError(err))
	}
}
