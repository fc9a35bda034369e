package services

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"docstream-platform/models"
)

// htmlPageSize is the approximate character budget of one logical HTML page.
const htmlPageSize = 5000

// Boilerplate stripped before extraction. Chrome elements carry navigation
// and legal text that poisons retrieval.
const htmlStripSelector = "script, style, noscript, iframe, svg, nav, footer, header, aside, form, input, button, " +
	"[role=banner], [role=navigation], [role=contentinfo]"

// ParseHTML extracts readable text from an HTML document, preferring the
// main content region when one is marked up. Output is paginated into
// roughly fixed-size pages split at paragraph boundaries.
func ParseHTML(data []byte) (*ParsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewIngestError(models.ErrCodeParseFailed, "html parse failed", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(htmlStripSelector).Remove()

	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Find("[role=main]").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}

	var sb strings.Builder
	if content.Length() > 0 {
		// Block-level elements become paragraph breaks; inline markup inside
		// them is flattened by the text accessor.
		content.Find("p, h1, h2, h3, h4, h5, h6, li, td, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n\n")
			}
		})
		if sb.Len() == 0 {
			sb.WriteString(content.Text())
		}
	}

	text := normalizeWhitespace(sb.String())

	var pages []ParsedPage
	for _, pageText := range splitAtParagraphs(text, htmlPageSize) {
		pages = append(pages, ParsedPage{PageNumber: len(pages) + 1, Text: pageText})
	}

	metadata := map[string]any{}
	if title != "" {
		metadata["title"] = title
	}
	return finishDocument(pages, metadata, "html"), nil
}

// splitAtParagraphs cuts text into segments of at most roughly maxLen
// characters, preferring a paragraph break inside the final 30% of the
// budget over a hard cut.
func splitAtParagraphs(text string, maxLen int) []string {
	if text == "" {
		return nil
	}

	var segments []string
	for len(text) > maxLen {
		cut := maxLen
		// Scan backward for a paragraph boundary, but not past 70% of the
		// budget; a hard cut beats a tiny page.
		floor := maxLen * 7 / 10
		for i := maxLen; i >= floor; i-- {
			if strings.HasPrefix(text[i:], "\n\n") {
				cut = i
				break
			}
		}
		// A hard cut must not land inside a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		segments = append(segments, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		segments = append(segments, text)
	}
	return segments
}
