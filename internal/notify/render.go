package notify

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ReadyMarkdown renders the message body for a ready event.
func ReadyMarkdown(ev ReadyEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Your translation of %s is ready\n\n", ev.SourceFileName)
	if ev.SourceLang != "" {
		fmt.Fprintf(&b, "Translated from **%s**.\n\n", ev.SourceLang)
	}

	if len(ev.Languages) > 0 {
		b.WriteString("| Language | File | Quality score | Warnings |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, l := range ev.Languages {
			score := fmt.Sprintf("%d", l.QualityScore)
			if !l.Evaluated {
				score = "n/a"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", l.Lang, l.OutputFileName, score, l.Warnings)
		}
		b.WriteString("\n")
	}
	if ev.ReviewURL != "" {
		fmt.Fprintf(&b, "[Review the translation](%s)\n", ev.ReviewURL)
	}
	return b.String()
}

func CorrectionMarkdown(ev CorrectionEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %d correction(s) submitted for job %s\n\n", ev.Corrections, ev.JobID)
	fmt.Fprintf(&b, "- Language: %s\n", ev.TargetLang)
	if ev.CountryCode != "" {
		fmt.Fprintf(&b, "- Country: %s\n", ev.CountryCode)
	}
	fmt.Fprintf(&b, "- Reviewer: %s\n", ev.SubmittedBy)
	fmt.Fprintf(&b, "- Terminology: %d, phrasing: %d\n", ev.Terminology, ev.Phrasing)
	return b.String()
}

func toHTML(md []byte) string {
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.CompletePage,
	})
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	return string(markdown.Render(p.Parse(md), renderer))
}

// toPlainText renders md and drops the tags, for clients without HTML.
func toPlainText(md []byte) string {
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	p := parser.NewWithExtensions(parser.CommonExtensions)
	rendered := string(markdown.Render(p.Parse(md), renderer))

	var b strings.Builder
	inTag := false
	for _, ch := range rendered {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
