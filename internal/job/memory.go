package job

import "time"

type CorrectionType string

const (
	CorrectionTerminology CorrectionType = "terminology"
	CorrectionPhrasing    CorrectionType = "phrasing"
)

// Valid reports whether t is one of the known correction types.
func (t CorrectionType) Valid() bool {
	return t == CorrectionTerminology || t == CorrectionPhrasing
}

// LearnedSegment is an exact source segment override learned from a
// phrasing correction.
type LearnedSegment struct {
	ID             string    `json:"id"`
	SourceText     string    `json:"sourceText"`
	OriginalTarget string    `json:"originalTarget,omitempty"`
	ImprovedTarget string    `json:"improvedTarget"`
	SourceLang     string    `json:"sourceLanguage"`
	TargetLang     string    `json:"targetLanguage"`
	UsageCount     int       `json:"usageCount"`
	LastUsedAt     time.Time `json:"lastUsedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// confidenceSaturation is the usage count at which an override is fully trusted.
const confidenceSaturation = 3

// Confidence derives override confidence from a usage count: usage/3, capped at 1.
func Confidence(usageCount int) float64 {
	if usageCount <= 0 {
		return 0
	}
	c := float64(usageCount) / confidenceSaturation
	if c > 1 {
		return 1
	}
	return c
}

func (s *LearnedSegment) Confidence() float64 {
	return Confidence(s.UsageCount)
}

// LearnedTerm is a term-level override learned from a terminology correction.
type LearnedTerm struct {
	ID         string    `json:"id"`
	SourceTerm string    `json:"sourceTerm"`
	TargetTerm string    `json:"targetTerm"`
	SourceLang string    `json:"sourceLanguage"`
	TargetLang string    `json:"targetLanguage"`
	Frequency  int       `json:"frequency"`
	UpdatedAt  time.Time `json:"updatedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Correction is one human correction as submitted by a reviewer.
type Correction struct {
	ID            string         `json:"id"`
	JobID         string         `json:"jobId"`
	TargetLang    string         `json:"targetLanguage"`
	CountryCode   string         `json:"countryCode,omitempty"`
	SubmittedBy   string         `json:"submittedBy"`
	OriginalText  string         `json:"originalText"`
	CorrectedText string         `json:"correctedText"`
	MachineText   string         `json:"machineText,omitempty"`
	Type          CorrectionType `json:"type"`
	CreatedAt     time.Time      `json:"createdAt"`
}
