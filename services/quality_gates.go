package services

import (
	"errors"
	"strings"

	"docstream-platform/models"
)

// EvaluateQuality runs the extraction gates over parsed output. A nil return
// means the document may proceed to chunking; a non-nil return is a terminal
// IngestError explaining why ingestion stops here.
//
// The gates distinguish three outcomes: a truly empty extraction, a likely
// scanned document that needs OCR, and extractions too thin to embed
// usefully. Two weak signals together fail the document; one alone passes.
func EvaluateQuality(doc *ParsedDocument) error {
	totalChars := 0
	nonEmptyPages := 0
	for _, p := range doc.Pages {
		trimmed := len(strings.TrimSpace(p.Text))
		totalChars += trimmed
		if trimmed > 10 {
			nonEmptyPages++
		}
	}

	if totalChars == 0 {
		return models.NewIngestError(models.ErrCodeExtractionEmpty,
			"no text extracted from document", nil)
	}

	pageCount := doc.PageCount
	ratio := 1.0
	avgCharsPerPage := float64(totalChars)
	if pageCount > 0 {
		ratio = float64(nonEmptyPages) / float64(pageCount)
		avgCharsPerPage = float64(totalChars) / float64(pageCount)
	}

	// A multi-page document with almost no text and mostly empty pages is
	// the signature of a scanned PDF.
	if pageCount > 1 && totalChars < 100 && ratio < 0.3 {
		return models.NewIngestError(models.ErrCodeNeedsOCR,
			"document appears to be scanned images with no text layer", nil)
	}

	issues := 0
	minChars := 50 * pageCount
	if pageCount <= 1 {
		minChars = 20
	}
	if totalChars < minChars {
		issues++
	}
	if pageCount > 3 && ratio < 0.5 {
		issues++
	}
	if pageCount > 5 && avgCharsPerPage < 20 {
		issues++
	}
	if issues >= 2 {
		return models.NewIngestError(models.ErrCodeExtractionLowQuality,
			"extracted text too sparse for reliable retrieval", nil)
	}

	return nil
}

// classifyRules maps error-message substrings to stable codes. Order
// matters: earlier rules win.
var classifyRules = []struct {
	substrings []string
	code       models.ErrorCode
}{
	{[]string{"rate limit", "429", "too many"}, models.ErrCodeProviderRateLimited},
	{[]string{"timeout", "timed out", "aborted"}, models.ErrCodeTimeout},
	{[]string{"invalid pdf", "corrupt", "bad xref"}, models.ErrCodeFileCorrupted},
	{[]string{"unsupported", "unknown format", "not supported"}, models.ErrCodeUnsupportedFormat},
	{[]string{"too large", "size limit", "memory"}, models.ErrCodeFileTooLarge},
}

// ClassifyError maps an arbitrary pipeline error to a stable error code.
// Errors already tagged with a code keep it; everything else is matched
// against known provider and parser message shapes, defaulting to
// parse_failed.
func ClassifyError(err error) models.ErrorCode {
	if err == nil {
		return models.ErrCodeInternal
	}
	var ingestErr *models.IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Code
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, s := range rule.substrings {
			if strings.Contains(msg, s) {
				return rule.code
			}
		}
	}
	return models.ErrCodeParseFailed
}
