package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"docstream-platform/internal/logger"
	"docstream-platform/models"
)

// ParsePDF extracts per-page text from a PDF. The structural extractor is
// tried first; when it yields nothing (scanned or oddly encoded files) the
// row-based layout extractor runs as a fallback. Both run under panic
// recovery because the underlying reader panics on malformed cross-reference
// tables.
func ParsePDF(data []byte) (*ParsedDocument, error) {
	pages, err := pdfExtractStructural(data)
	total := 0
	for _, p := range pages {
		total += len(strings.TrimSpace(p.Text))
	}
	if err == nil && total > 0 {
		return finishDocument(pages, map[string]any{"extraction": "structural"}, "pdf"), nil
	}
	if err != nil {
		logger.Warn("pdf structural extraction failed, trying layout fallback", "error", err)
	}

	fallbackPages, fbErr := pdfExtractLayout(data)
	if fbErr != nil {
		if err != nil {
			return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "invalid pdf", err)
		}
		return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "invalid pdf", fbErr)
	}
	return finishDocument(fallbackPages, map[string]any{"extraction": "layout"}, "pdf"), nil
}

// pdfExtractStructural walks pages and pulls plain text from content streams.
func pdfExtractStructural(data []byte) (pages []ParsedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}

	numPages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			extracted, pageErr := page.GetPlainText(fonts)
			if pageErr != nil {
				logger.Debug("pdf page extraction failed", "page", i, "error", pageErr)
			} else {
				text = extracted
			}
		}
		pages = append(pages, ParsedPage{PageNumber: i, Text: normalizeWhitespace(text)})
	}
	return pages, nil
}

// pdfExtractLayout reconstructs text from positioned rows. Slower, but
// handles files whose content streams defeat the structural walk.
func pdfExtractLayout(data []byte) (pages []ParsedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		var sb strings.Builder
		if !page.V.IsNull() {
			rows, rowErr := page.GetTextByRow()
			if rowErr != nil {
				logger.Debug("pdf row extraction failed", "page", i, "error", rowErr)
			} else {
				for _, row := range rows {
					for _, word := range row.Content {
						sb.WriteString(word.S)
						sb.WriteString(" ")
					}
					sb.WriteString("\n")
				}
			}
		}
		pages = append(pages, ParsedPage{PageNumber: i, Text: normalizeWhitespace(sb.String())})
	}
	return pages, nil
}
