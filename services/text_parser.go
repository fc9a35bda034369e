package services

import (
	"strings"
)

// Plain text is paginated by line count so provenance stays meaningful for
// long files.
const textLinesPerPage = 100

// ParseText normalizes a plain-text file to UTF-8 with LF line endings and
// splits it into fixed-size logical pages. A file with no content yields
// zero pages; the quality gates decide what that means.
func ParseText(data []byte) (*ParsedDocument, error) {
	text := strings.ToValidUTF8(string(data), "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if strings.TrimSpace(text) == "" {
		return finishDocument(nil, map[string]any{"lineCount": 0}, "text"), nil
	}

	lines := strings.Split(text, "\n")
	var pages []ParsedPage
	for start := 0; start < len(lines); start += textLinesPerPage {
		end := start + textLinesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pageText := normalizeWhitespace(strings.Join(lines[start:end], "\n"))
		pages = append(pages, ParsedPage{PageNumber: len(pages) + 1, Text: pageText})
	}

	return finishDocument(pages, map[string]any{"lineCount": len(lines)}, "text"), nil
}
