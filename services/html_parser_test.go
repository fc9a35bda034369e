package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseHTMLStripsBoilerplate(t *testing.T) {
	input := `<html><head><title>Quarterly Report</title>
		<script>alert("nope")</script><style>p{color:red}</style></head>
		<body>
		<nav>Home | About | Contact</nav>
		<main><p>Revenue grew in the third quarter.</p><p>Costs were flat.</p></main>
		<footer>Copyright 2026 Example Corp</footer>
		</body></html>`

	doc, err := ParseHTML([]byte(input))
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}

	text := doc.Pages[0].Text
	if !strings.Contains(text, "Revenue grew in the third quarter.") {
		t.Errorf("main content missing: %q", text)
	}
	for _, banned := range []string{"alert", "color:red", "Home | About", "Copyright 2026"} {
		if strings.Contains(text, banned) {
			t.Errorf("boilerplate %q leaked into output", banned)
		}
	}
	if doc.Metadata["title"] != "Quarterly Report" {
		t.Errorf("title = %v", doc.Metadata["title"])
	}
}

func TestParseHTMLFallsBackToBody(t *testing.T) {
	input := `<html><body><p>No main element here.</p><p>Still extracted.</p></body></html>`
	doc, err := ParseHTML([]byte(input))
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	if doc.PageCount != 1 {
		t.Fatalf("got %d pages", doc.PageCount)
	}
	if !strings.Contains(doc.Pages[0].Text, "No main element here.") {
		t.Errorf("body content missing: %q", doc.Pages[0].Text)
	}
}

func TestParseHTMLTitleFromH1(t *testing.T) {
	input := `<html><body><h1>Fallback Heading</h1><p>Content.</p></body></html>`
	doc, err := ParseHTML([]byte(input))
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	if doc.Metadata["title"] != "Fallback Heading" {
		t.Errorf("title = %v", doc.Metadata["title"])
	}
}

func TestParseHTMLEmptyBody(t *testing.T) {
	doc, err := ParseHTML([]byte(`<html><body></body></html>`))
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	if doc.PageCount != 0 {
		t.Errorf("empty body should yield zero pages, got %d", doc.PageCount)
	}
}

func TestSplitAtParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 50) // ~250 chars
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 8))

	segments := splitAtParagraphs(text, 600)
	if len(segments) < 3 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if len(seg) > 600 {
			t.Errorf("segment %d exceeds budget: %d chars", i, len(seg))
		}
		if strings.TrimSpace(seg) == "" {
			t.Errorf("segment %d is blank", i)
		}
	}
	// Splits should land on paragraph boundaries, not mid-word.
	for i, seg := range segments[:len(segments)-1] {
		if !strings.HasSuffix(seg, "word") {
			t.Errorf("segment %d does not end at a word boundary: %q", i, seg[len(seg)-20:])
		}
	}
}

func TestSplitAtParagraphsHardCutKeepsValidUTF8(t *testing.T) {
	// No paragraph breaks at all, so every split is a hard cut. Two-byte
	// runes make odd budgets land mid-rune unless the cut backs up.
	text := strings.Repeat("ü", 500)

	for _, budget := range []int{99, 100, 101, 250} {
		segments := splitAtParagraphs(text, budget)
		if len(segments) < 2 {
			t.Fatalf("budget %d: expected multiple segments, got %d", budget, len(segments))
		}
		total := 0
		for i, seg := range segments {
			if !utf8.ValidString(seg) {
				t.Errorf("budget %d: segment %d is not valid UTF-8", budget, i)
			}
			total += utf8.RuneCountInString(seg)
		}
		if total != 500 {
			t.Errorf("budget %d: %d runes survived, want 500", budget, total)
		}
	}
}
