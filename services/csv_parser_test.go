package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseCSVRendersRows(t *testing.T) {
	input := "Name,Role,City\nAda,Engineer,London\nGrace,,New York\n"
	doc, err := ParseCSV([]byte(input))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}

	lines := strings.Split(doc.Pages[0].Text, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rendered rows: %q", len(lines), doc.Pages[0].Text)
	}
	if lines[0] != "Name: Ada | Role: Engineer | City: London" {
		t.Errorf("row 1: %q", lines[0])
	}
	// Empty fields are omitted entirely.
	if lines[1] != "Name: Grace | City: New York" {
		t.Errorf("row 2: %q", lines[1])
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	input := "A,B\n1,2,3\n4\n"
	doc, err := ParseCSV([]byte(input))
	if err != nil {
		t.Fatalf("ragged rows must not fail: %v", err)
	}
	lines := strings.Split(doc.Pages[0].Text, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows: %q", len(lines), doc.Pages[0].Text)
	}
	// Extra column falls back to a positional name.
	if lines[0] != "A: 1 | B: 2 | column 3: 3" {
		t.Errorf("row 1: %q", lines[0])
	}
	if lines[1] != "A: 4" {
		t.Errorf("row 2: %q", lines[1])
	}
}

func TestParseCSVEmpty(t *testing.T) {
	doc, err := ParseCSV([]byte(""))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if doc.PageCount != 0 {
		t.Errorf("empty file should yield zero pages, got %d", doc.PageCount)
	}
}

func TestParseCSVPaginationAndTruncation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,value\n")
	for i := 0; i < 10500; i++ {
		fmt.Fprintf(&sb, "%d,item\n", i)
	}

	doc, err := ParseCSV([]byte(sb.String()))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if doc.Metadata["truncated"] != true {
		t.Error("expected truncated metadata flag")
	}
	if doc.Metadata["rowCount"] != 10000 {
		t.Errorf("rowCount = %v, want 10000", doc.Metadata["rowCount"])
	}
	if doc.PageCount != 100 {
		t.Errorf("10000 rows at 100 per page should yield 100 pages, got %d", doc.PageCount)
	}
}
