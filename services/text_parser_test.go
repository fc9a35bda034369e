package services

import (
	"strings"
	"testing"
)

func TestParseTextEmpty(t *testing.T) {
	doc, err := ParseText([]byte("   \n\n \t "))
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if doc.PageCount != 0 {
		t.Errorf("blank file should yield zero pages, got %d", doc.PageCount)
	}
}

func TestParseTextPagination(t *testing.T) {
	lines := make([]string, 250)
	for i := range lines {
		lines[i] = "line of content"
	}
	doc, err := ParseText([]byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if doc.PageCount != 3 {
		t.Fatalf("250 lines should split into 3 pages, got %d", doc.PageCount)
	}
	for i, p := range doc.Pages {
		if p.PageNumber != i+1 {
			t.Errorf("page %d numbered %d", i, p.PageNumber)
		}
		if p.CharCount != len(p.Text) {
			t.Errorf("page %d char count %d != len %d", i, p.CharCount, len(p.Text))
		}
	}
	if doc.Parser != "text" {
		t.Errorf("parser = %q", doc.Parser)
	}
}

func TestParseTextNormalizesLineEndings(t *testing.T) {
	doc, err := ParseText([]byte("first\r\nsecond\rthird"))
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}
	if strings.ContainsRune(doc.Pages[0].Text, '\r') {
		t.Error("carriage returns should be normalized away")
	}
	if doc.Pages[0].Text != "first\nsecond\nthird" {
		t.Errorf("unexpected text %q", doc.Pages[0].Text)
	}
}

func TestParseTextInvalidUTF8(t *testing.T) {
	doc, err := ParseText([]byte{'o', 'k', 0xff, 0xfe, '!'})
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}
	if !strings.Contains(doc.Pages[0].Text, "ok") {
		t.Errorf("valid bytes lost: %q", doc.Pages[0].Text)
	}
}
