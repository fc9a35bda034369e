package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"docstream-platform/models"
)

func docWithPages(texts ...string) *ParsedDocument {
	pages := make([]ParsedPage, len(texts))
	for i, text := range texts {
		pages[i] = ParsedPage{PageNumber: i + 1, Text: text, CharCount: len(text)}
	}
	return &ParsedDocument{Pages: pages, PageCount: len(pages)}
}

func gateCode(t *testing.T, err error) models.ErrorCode {
	t.Helper()
	var ingestErr *models.IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected IngestError, got %T: %v", err, err)
	}
	return ingestErr.Code
}

func TestQualityGateEmpty(t *testing.T) {
	err := EvaluateQuality(docWithPages("", "  ", "\n\n"))
	if err == nil {
		t.Fatal("expected empty extraction to fail")
	}
	if code := gateCode(t, err); code != models.ErrCodeExtractionEmpty {
		t.Errorf("got code %s, want extraction_empty", code)
	}
}

func TestQualityGateNeedsOCR(t *testing.T) {
	// Five pages, a single short fragment on one of them. Typical scanned
	// PDF with a stray text annotation.
	err := EvaluateQuality(docWithPages("", "", "Fig. 3 caption text", "", ""))
	if err == nil {
		t.Fatal("expected scanned document to fail")
	}
	if code := gateCode(t, err); code != models.ErrCodeNeedsOCR {
		t.Errorf("got code %s, want needs_ocr", code)
	}
}

func TestQualityGateLowQuality(t *testing.T) {
	// Six pages with a trickle of text each: too little overall and too
	// little per page, but every page non-empty so the OCR gate stays quiet.
	texts := make([]string, 6)
	for i := range texts {
		texts[i] = "thin content here"
	}
	err := EvaluateQuality(docWithPages(texts...))
	if err == nil {
		t.Fatal("expected sparse document to fail")
	}
	if code := gateCode(t, err); code != models.ErrCodeExtractionLowQuality {
		t.Errorf("got code %s, want extraction_low_quality", code)
	}
}

func TestQualityGateSingleWeakSignalPasses(t *testing.T) {
	// Two full pages among five: the non-empty ratio dips below half but
	// total volume is healthy. One weak signal alone must not fail the
	// document.
	page := strings.Repeat("A full paragraph of real extracted content sits on this page. ", 5)
	if err := EvaluateQuality(docWithPages(page, page, "", "", "")); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestQualityGateHealthyDocument(t *testing.T) {
	page := strings.Repeat("Plenty of meaningful text extracted from the source document. ", 10)
	if err := EvaluateQuality(docWithPages(page, page, page)); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := EvaluateQuality(docWithPages("A single page with just enough text.")); err != nil {
		t.Fatalf("expected single page pass, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		msg  string
		want models.ErrorCode
	}{
		{"provider returned 429: rate limit exceeded", models.ErrCodeProviderRateLimited},
		{"Too Many Requests", models.ErrCodeProviderRateLimited},
		{"context deadline exceeded: request timed out", models.ErrCodeTimeout},
		{"operation aborted", models.ErrCodeTimeout},
		{"invalid pdf: bad xref table", models.ErrCodeFileCorrupted},
		{"archive is corrupt", models.ErrCodeFileCorrupted},
		{"format not supported by any parser", models.ErrCodeUnsupportedFormat},
		{"file exceeds size limit", models.ErrCodeFileTooLarge},
		{"out of memory rendering sheet", models.ErrCodeFileTooLarge},
		{"something else entirely", models.ErrCodeParseFailed},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			if got := ClassifyError(errors.New(tc.msg)); got != tc.want {
				t.Errorf("ClassifyError(%q) = %s, want %s", tc.msg, got, tc.want)
			}
		})
	}
}

func TestClassifyErrorKeepsTaggedCode(t *testing.T) {
	tagged := models.NewIngestError(models.ErrCodeNeedsOCR, "scanned document", nil)
	if got := ClassifyError(tagged); got != models.ErrCodeNeedsOCR {
		t.Errorf("got %s, want needs_ocr", got)
	}

	wrapped := fmt.Errorf("stage parsing: %w",
		models.NewIngestError(models.ErrCodeExtractionEmpty, "nothing extracted", nil))
	if got := ClassifyError(wrapped); got != models.ErrCodeExtractionEmpty {
		t.Errorf("got %s for wrapped error, want extraction_empty", got)
	}
}

func TestClassifyErrorTotality(t *testing.T) {
	// Every classification result must be a member of the closed code set.
	known := map[models.ErrorCode]bool{
		models.ErrCodeExtractionEmpty: true, models.ErrCodeExtractionLowQuality: true,
		models.ErrCodeNeedsOCR: true, models.ErrCodeParseFailed: true,
		models.ErrCodeProviderRateLimited: true, models.ErrCodeTimeout: true,
		models.ErrCodeUnsupportedFormat: true, models.ErrCodeFileTooLarge: true,
		models.ErrCodeFileCorrupted: true, models.ErrCodeDocumentDeleted: true,
		models.ErrCodeInternal: true,
	}
	inputs := []error{
		nil,
		errors.New(""),
		errors.New("weird unseen failure mode"),
		models.NewIngestError(models.ErrCodeInternal, "boom", nil),
	}
	for _, in := range inputs {
		if got := ClassifyError(in); !known[got] {
			t.Errorf("ClassifyError(%v) produced unknown code %s", in, got)
		}
	}
}
