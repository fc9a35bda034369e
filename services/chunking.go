package services

import (
	"regexp"
	"strings"

	"docstream-platform/models"
)

// SemanticChunker splits parsed pages into retrieval chunks along sentence
// boundaries, carrying inclusive page provenance on every chunk and seeding
// each chunk with overlap sentences from its predecessor so context survives
// the cut.
type SemanticChunker struct {
	MaxChunkSize int
	MinChunkSize int
	Overlap      int
}

// NewSemanticChunker returns a chunker with the platform defaults.
func NewSemanticChunker(max, min, overlap int) *SemanticChunker {
	if max <= 0 {
		max = 1000
	}
	if min <= 0 {
		min = 200
	}
	if overlap < 0 {
		overlap = 100
	}
	return &SemanticChunker{MaxChunkSize: max, MinChunkSize: min, Overlap: overlap}
}

// sentenceEnd matches terminal punctuation followed by whitespace and an
// uppercase letter (including common umlauts) or a newline run.
var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+[A-ZÄÖÜ]|\n+)`)

type pageSentence struct {
	text string
	page int
}

// Chunk produces 0-based contiguous chunks over the pages in order. Pages
// must be sorted by page number. PageStart and PageEnd are inclusive 1-based
// bounds; PageEnd never decreases across the output.
func (c *SemanticChunker) Chunk(pages []models.DocumentPage) []models.DocumentChunk {
	sentences := c.collect(pages)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []models.DocumentChunk
	var current []pageSentence
	currentLen := 0

	flush := func(final bool) {
		if len(current) == 0 {
			return
		}
		text := joinSentences(current)
		// Short tails are dropped unless this would leave the document with
		// no chunks at all.
		if len(text) < c.MinChunkSize && !(final && len(chunks) == 0) {
			current = nil
			currentLen = 0
			return
		}
		texts := make([]string, len(current))
		start, end := current[0].page, current[0].page
		for i, s := range current {
			texts[i] = s.text
			if s.page < start {
				start = s.page
			}
			if s.page > end {
				end = s.page
			}
		}
		chunks = append(chunks, models.DocumentChunk{
			ChunkIndex: len(chunks),
			Text:       text,
			PageStart:  start,
			PageEnd:    end,
			Sentences:  texts,
		})
		current = c.overlapTail(current)
		currentLen = 0
		for _, s := range current {
			currentLen += len(s.text) + 1
		}
	}

	for _, s := range sentences {
		if currentLen > 0 && currentLen+len(s.text) > c.MaxChunkSize {
			flush(false)
			// Overlap sentences carried across the cut take the page being
			// processed; the new chunk starts on the current page even when
			// the carried text was read on an earlier one.
			for i := range current {
				current[i].page = s.page
			}
		}
		current = append(current, s)
		currentLen += len(s.text) + 1
	}
	flush(true)

	return chunks
}

// collect normalizes each page and splits it into page-tagged sentences.
func (c *SemanticChunker) collect(pages []models.DocumentPage) []pageSentence {
	var out []pageSentence
	for _, p := range pages {
		text := normalizeWhitespace(p.Text)
		if text == "" {
			continue
		}
		for _, s := range splitSentences(text) {
			out = append(out, pageSentence{text: s, page: p.PageNumber})
		}
	}
	return out
}

// splitSentences cuts text after terminal punctuation, keeping the
// punctuation with the sentence it ends.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		// loc[1] is the end of the whole match; the boundary sits where the
		// trailing whitespace begins, right after the punctuation run.
		punctEnd := loc[0]
		for punctEnd < len(text) && strings.ContainsRune(".!?", rune(text[punctEnd])) {
			punctEnd++
		}
		if s := strings.TrimSpace(text[last:punctEnd]); s != "" {
			sentences = append(sentences, s)
		}
		last = punctEnd
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns the trailing sentences whose cumulative length fits
// the overlap budget. They seed the next chunk.
func (c *SemanticChunker) overlapTail(sentences []pageSentence) []pageSentence {
	if c.Overlap <= 0 {
		return nil
	}
	total := 0
	i := len(sentences)
	for i > 0 {
		next := total + len(sentences[i-1].text)
		if next > c.Overlap {
			break
		}
		total = next
		i--
	}
	if i == len(sentences) {
		return nil
	}
	tail := make([]pageSentence, len(sentences)-i)
	copy(tail, sentences[i:])
	return tail
}

func joinSentences(sentences []pageSentence) string {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}
