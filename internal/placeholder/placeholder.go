// Package placeholder shields markup in markdown segments from the provider.
// Code, HTML tags and link targets are swapped for numbered [PHn] markers
// before translation and put back afterwards.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`\n]+`")
	reHTMLTag    = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	// the "(url)" half of a markdown link or image
	reLinkTarget = regexp.MustCompile(`\]\([^)\s]+(?:\s+"[^"]*")?\)`)
	reBareURL    = regexp.MustCompile(`https?://[^\s<>()\[\]]+`)

	reMarker = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protected is a segment with its markup replaced by markers.
type Protected struct {
	Text    string
	markers []string
}

// Protect replaces markup in text with markers. Fenced code is replaced
// first so its contents are never matched by the later patterns.
func Protect(text string) Protected {
	var markers []string
	replace := func(match string) string {
		markers = append(markers, match)
		return fmt.Sprintf("[PH%d]", len(markers)-1)
	}

	for _, re := range []*regexp.Regexp{reFencedCode, reInlineCode, reHTMLTag, reLinkTarget, reBareURL} {
		text = re.ReplaceAllStringFunc(text, replace)
	}
	return Protected{Text: text, markers: markers}
}

// Markers reports how many markers were created.
func (p Protected) Markers() int {
	return len(p.markers)
}

// Translatable reports whether anything besides markers and whitespace is
// left to translate.
func (p Protected) Translatable() bool {
	return strings.TrimSpace(reMarker.ReplaceAllString(p.Text, "")) != ""
}

// Restore puts the original markup back into translated and returns the
// indices of markers the provider dropped. Unknown indices are left as is.
func (p Protected) Restore(translated string) (string, []int) {
	seen := make([]bool, len(p.markers))
	out := reMarker.ReplaceAllStringFunc(translated, func(match string) string {
		idx, err := strconv.Atoi(reMarker.FindStringSubmatch(match)[1])
		if err != nil || idx >= len(p.markers) {
			return match
		}
		seen[idx] = true
		return p.markers[idx]
	})

	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return out, missing
}
