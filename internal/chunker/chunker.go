// Package chunker splits plain-text and markdown documents into ordered
// translation segments and joins translated segments back into a document.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultMaxChars bounds a single segment sent to the provider.
const DefaultMaxChars = 5000

// Segment is one translatable unit of a document. Segments that share a
// Paragraph were split from the same paragraph.
type Segment struct {
	Index     int
	Paragraph int
	Text      string
}

// Segments splits text into paragraphs at blank lines and further splits any
// paragraph longer than maxChars with Chunk. Empty paragraphs are dropped.
func Segments(text string, maxChars int) []Segment {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var segs []Segment
	para := 0
	for _, p := range paragraphs(text) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pieces := []string{p}
		if !strings.Contains(p, "```") {
			pieces = Chunk(p, maxChars)
		}
		for _, c := range pieces {
			segs = append(segs, Segment{Index: len(segs), Paragraph: para, Text: c})
		}
		para++
	}
	return segs
}

// paragraphs splits at blank lines, except inside fenced code blocks.
func paragraphs(text string) []string {
	var out []string
	var open []string
	for _, p := range strings.Split(text, "\n\n") {
		if open != nil {
			open = append(open, p)
			if strings.Count(p, "```")%2 == 1 {
				out = append(out, strings.Join(open, "\n\n"))
				open = nil
			}
			continue
		}
		if strings.Count(p, "```")%2 == 1 {
			open = []string{p}
			continue
		}
		out = append(out, p)
	}
	if open != nil {
		out = append(out, strings.Join(open, "\n\n"))
	}
	return out
}

// Join rebuilds a document from the translations of segs, given in the same
// order. Pieces of one paragraph are joined by a space and paragraphs by a
// blank line.
func Join(segs []Segment, translated []string) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			if s.Paragraph != segs[i-1].Paragraph {
				b.WriteString("\n\n")
			} else {
				b.WriteByte(' ')
			}
		}
		if i < len(translated) {
			b.WriteString(translated[i])
		}
	}
	return b.String()
}

// Chunk splits text into pieces each no longer than maxChars code points.
// Splits are attempted at paragraph boundaries, then after sentence-ending
// punctuation, then at whitespace, and finally as a hard cut.
// maxChars <= 0 means unlimited.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len([]rune(remaining)) > maxChars {
		split := findSplit([]rune(remaining), maxChars)
		if c := strings.TrimSpace(remaining[:split]); c != "" {
			chunks = append(chunks, c)
		}
		remaining = strings.TrimSpace(remaining[split:])
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// findSplit returns the byte offset at which to cut so the head holds at most
// maxChars runes.
func findSplit(runes []rune, maxChars int) int {
	candidate := runes[:maxChars]
	head := string(candidate)

	if idx := strings.LastIndex(head, "\n\n"); idx > 0 {
		return idx + 2
	}

	for i := len(candidate) - 2; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(candidate[i+1]) {
			return len(string(candidate[:i+1]))
		}
	}

	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	return len(head)
}
