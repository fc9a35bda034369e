package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"docstream-platform/models"
)

// DOCX files have no native page boundaries, so paragraphs are grouped into
// logical pages of a fixed size.
const docxParagraphsPerPage = 50

// ParseDOCX extracts paragraph text from the main document part of a DOCX
// archive. Text runs inside a paragraph are concatenated; paragraphs become
// the unit of pagination.
func ParseDOCX(data []byte) (*ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "not a valid docx archive", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "docx archive has no word/document.xml", nil)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeFileCorrupted, "cannot open docx document part", err)
	}
	defer rc.Close()

	paragraphs, warnings, err := docxParagraphs(rc)
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeParseFailed, "docx xml decode failed", err)
	}

	var pages []ParsedPage
	for start := 0; start < len(paragraphs); start += docxParagraphsPerPage {
		end := start + docxParagraphsPerPage
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		text := normalizeWhitespace(strings.Join(paragraphs[start:end], "\n\n"))
		pages = append(pages, ParsedPage{PageNumber: len(pages) + 1, Text: text})
	}

	metadata := map[string]any{"paragraphCount": len(paragraphs)}
	if len(warnings) > 0 {
		metadata["warnings"] = warnings
	}
	return finishDocument(pages, metadata, "docx"), nil
}

// docxParagraphs streams the document XML, collecting the text of each w:p
// element. Non-empty paragraphs only.
func docxParagraphs(r io.Reader) ([]string, []string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var warnings []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if len(paragraphs) > 0 {
				warnings = append(warnings, fmt.Sprintf("xml truncated after %d paragraphs: %v", len(paragraphs), err))
				break
			}
			return nil, nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "br", "cr":
				current.WriteString("\n")
			case "tab":
				current.WriteString("\t")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}
	if text := strings.TrimSpace(current.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return paragraphs, warnings, nil
}
