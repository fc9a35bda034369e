package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func docxXML(paragraphs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

func TestParseDOCXExtractsParagraphs(t *testing.T) {
	data := buildDOCX(t, docxXML("First paragraph.", "Second paragraph."))
	doc, err := ParseDOCX(data)
	if err != nil {
		t.Fatalf("ParseDOCX failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}
	want := "First paragraph.\n\nSecond paragraph."
	if doc.Pages[0].Text != want {
		t.Errorf("got %q, want %q", doc.Pages[0].Text, want)
	}
	if doc.Metadata["paragraphCount"] != 2 {
		t.Errorf("paragraphCount = %v", doc.Metadata["paragraphCount"])
	}
}

func TestParseDOCXSplitRuns(t *testing.T) {
	// Word frequently splits one visual sentence across several runs.
	xmlDoc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>split </w:t></w:r><w:r><w:t>world.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	doc, err := ParseDOCX(buildDOCX(t, xmlDoc))
	if err != nil {
		t.Fatalf("ParseDOCX failed: %v", err)
	}
	if doc.Pages[0].Text != "Hello split world." {
		t.Errorf("got %q", doc.Pages[0].Text)
	}
}

func TestParseDOCXPagination(t *testing.T) {
	paragraphs := make([]string, 120)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph number %d.", i)
	}
	doc, err := ParseDOCX(buildDOCX(t, docxXML(paragraphs...)))
	if err != nil {
		t.Fatalf("ParseDOCX failed: %v", err)
	}
	if doc.PageCount != 3 {
		t.Errorf("120 paragraphs at 50 per page should yield 3 pages, got %d", doc.PageCount)
	}
}

func TestParseDOCXNotAZip(t *testing.T) {
	_, err := ParseDOCX([]byte("definitely not a zip archive"))
	if err == nil {
		t.Fatal("expected error for non-zip input")
	}
	if ClassifyError(err) != "file_corrupted" {
		t.Errorf("got code %s, want file_corrupted", ClassifyError(err))
	}
}

func TestParseDOCXMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/styles.xml")
	w.Write([]byte("<styles/>"))
	zw.Close()

	_, err := ParseDOCX(buf.Bytes())
	if err == nil {
		t.Fatal("expected error for archive without document part")
	}
}
