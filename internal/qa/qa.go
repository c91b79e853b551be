// Package qa grades a translation by checking glossary compliance and
// numeric consistency segment by segment.
//
// Evaluate is deterministic and performs no I/O: identical inputs always
// produce identical warnings and the same score.
package qa

import (
	"fmt"
	"strings"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

const (
	maxScore              = 100
	glossaryWarningWeight = 10
	numberWarningWeight   = 15
)

// Segment is one source segment and its translation. An empty Target means
// the segment was not translated and is skipped.
type Segment struct {
	Source string
	Target string
}

// GlossaryTerm is an expected source → target term mapping.
type GlossaryTerm struct {
	Source string
	Target string
}

// Evaluate checks every translated segment against terms and returns the
// collected warnings together with the resulting score.
func Evaluate(segments []Segment, terms []GlossaryTerm) job.QAResult {
	result := job.QAResult{
		GlossaryWarnings: []job.GlossaryWarning{},
		NumberWarnings:   []job.NumberWarning{},
		Evaluated:        true,
	}

	for i, seg := range segments {
		if strings.TrimSpace(seg.Target) == "" {
			continue
		}
		result.GlossaryWarnings = append(result.GlossaryWarnings, checkGlossary(i, seg, terms)...)
		result.NumberWarnings = append(result.NumberWarnings, checkNumbers(i, seg)...)
	}

	result.WarningCount = len(result.GlossaryWarnings) + len(result.NumberWarnings)
	result.Score = Score(len(result.GlossaryWarnings), len(result.NumberWarnings))
	return result
}

// Score returns 100 minus 10 per glossary warning and 15 per number warning,
// floored at 0.
func Score(glossaryWarnings, numberWarnings int) int {
	score := maxScore - glossaryWarningWeight*glossaryWarnings - numberWarningWeight*numberWarnings
	if score < 0 {
		return 0
	}
	return score
}

// Placeholder is the result stored for jobs translated through the document
// API, where no segment-level text is available to check.
func Placeholder() job.QAResult {
	return job.QAResult{
		GlossaryWarnings: []job.GlossaryWarning{},
		NumberWarnings:   []job.NumberWarning{},
		Score:            maxScore,
	}
}

func checkGlossary(index int, seg Segment, terms []GlossaryTerm) []job.GlossaryWarning {
	var warnings []job.GlossaryWarning
	source := strings.ToLower(seg.Source)
	target := strings.ToLower(seg.Target)

	for _, term := range terms {
		if term.Source == "" || term.Target == "" {
			continue
		}
		if !strings.Contains(source, strings.ToLower(term.Source)) {
			continue
		}
		if strings.Contains(target, strings.ToLower(term.Target)) {
			continue
		}
		warnings = append(warnings, job.GlossaryWarning{
			SegmentIndex: index,
			SourceText:   seg.Source,
			SourceTerm:   term.Source,
			ExpectedTerm: term.Target,
		})
	}
	return warnings
}

func checkNumbers(index int, seg Segment) []job.NumberWarning {
	src := ExtractNumbers(seg.Source)
	tgt := ExtractNumbers(seg.Target)

	if len(src) != len(tgt) {
		return []job.NumberWarning{{
			SegmentIndex: index,
			Kind:         job.NumberCountMismatch,
			SourceCount:  len(src),
			TargetCount:  len(tgt),
		}}
	}

	var warnings []job.NumberWarning
	for i := range src {
		if NormalizeNumber(src[i]) != NormalizeNumber(tgt[i]) {
			warnings = append(warnings, job.NumberWarning{
				SegmentIndex: index,
				Kind:         job.NumberValueMismatch,
				SourceNumber: src[i],
				TargetNumber: tgt[i],
			})
		}
	}
	return warnings
}

// Describe renders a warning as a single human-readable line.
func Describe(w any) string {
	switch v := w.(type) {
	case job.GlossaryWarning:
		return fmt.Sprintf("segment %d: expected %q for %q", v.SegmentIndex, v.ExpectedTerm, v.SourceTerm)
	case job.NumberWarning:
		if v.Kind == job.NumberCountMismatch {
			return fmt.Sprintf("segment %d: source has %d numbers, target has %d", v.SegmentIndex, v.SourceCount, v.TargetCount)
		}
		return fmt.Sprintf("segment %d: number %s became %s", v.SegmentIndex, v.SourceNumber, v.TargetNumber)
	default:
		return fmt.Sprint(w)
	}
}
