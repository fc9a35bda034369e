package services

import (
	"path/filepath"
	"strings"

	"docstream-platform/models"
)

// ParsedPage is one logical page of normalized parser output.
type ParsedPage struct {
	PageNumber int
	Text       string
	CharCount  int
}

// ParsedDocument is the normalized output contract shared by all parsers.
// Empty documents carry zero pages and zero counts; that is not an error at
// this layer.
type ParsedDocument struct {
	Pages     []ParsedPage
	PageCount int
	CharCount int
	WordCount int
	Metadata  map[string]any
	Parser    string
}

// ParserFunc extracts a normalized document from raw bytes.
type ParserFunc func(data []byte) (*ParsedDocument, error)

// ParserRouter dispatches bytes to format-specific extractors. Lookup order:
// MIME type, then source type via its canonical MIME. Adding a format adds
// one entry to each table.
type ParserRouter struct {
	byMIME        map[string]ParserFunc
	canonicalMIME map[models.SourceType]string
}

// NewParserRouter builds the router with all supported formats registered.
func NewParserRouter() *ParserRouter {
	r := &ParserRouter{
		byMIME:        make(map[string]ParserFunc),
		canonicalMIME: make(map[models.SourceType]string),
	}

	r.register(models.SourcePDF, "application/pdf", ParsePDF)
	r.register(models.SourceDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ParseDOCX)
	r.byMIME["application/msword"] = ParseDOCX
	r.register(models.SourceTXT, "text/plain", ParseText)
	r.register(models.SourceCSV, "text/csv", ParseCSV)
	r.register(models.SourceXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ParseXLSX)
	r.byMIME["application/vnd.ms-excel"] = ParseXLSX
	r.register(models.SourceHTML, "text/html", ParseHTML)

	return r
}

func (r *ParserRouter) register(st models.SourceType, mime string, fn ParserFunc) {
	r.byMIME[mime] = fn
	r.canonicalMIME[st] = mime
}

// Parse routes bytes to the right extractor. Unknown formats yield a
// terminal unsupported_format error.
func (r *ParserRouter) Parse(mimeType string, sourceType models.SourceType, data []byte) (*ParsedDocument, error) {
	fn, ok := r.byMIME[normalizeMIME(mimeType)]
	if !ok {
		if canonical, found := r.canonicalMIME[sourceType]; found {
			fn, ok = r.byMIME[canonical]
		}
	}
	if !ok {
		return nil, models.NewIngestError(models.ErrCodeUnsupportedFormat,
			"no parser for mime type "+mimeType, nil)
	}
	return fn(data)
}

// normalizeMIME strips parameters such as "; charset=utf-8".
func normalizeMIME(mime string) string {
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// SourceTypeFromFilename infers the source type from a filename extension.
// This lives on the upload path, not in the parser.
func SourceTypeFromFilename(filename string) (models.SourceType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.SourcePDF, true
	case ".docx", ".doc":
		return models.SourceDOCX, true
	case ".txt", ".md", ".text":
		return models.SourceTXT, true
	case ".csv":
		return models.SourceCSV, true
	case ".xlsx", ".xls":
		return models.SourceXLSX, true
	case ".html", ".htm":
		return models.SourceHTML, true
	}
	return "", false
}

// normalizeWhitespace collapses horizontal whitespace runs, trims line ends,
// and caps blank-line runs at one, so downstream character counts reflect
// content rather than layout artifacts.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	var out []string
	blanks := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// countWords counts whitespace-delimited words across pages.
func countWords(pages []ParsedPage) int {
	total := 0
	for _, p := range pages {
		total += len(strings.Fields(p.Text))
	}
	return total
}

// finishDocument fills the aggregate counters of a parsed document.
func finishDocument(pages []ParsedPage, metadata map[string]any, parser string) *ParsedDocument {
	chars := 0
	for i := range pages {
		pages[i].CharCount = len(pages[i].Text)
		chars += pages[i].CharCount
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["parser"] = parser
	return &ParsedDocument{
		Pages:     pages,
		PageCount: len(pages),
		CharCount: chars,
		WordCount: countWords(pages),
		Metadata:  metadata,
		Parser:    parser,
	}
}
