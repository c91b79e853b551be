// Package job holds the records shared by the orchestrator, the correction
// memory and the persistence layer.
package job

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one translation request. A multi-language request is stored as a
// parent whose TargetLang lists every child language, plus one child per
// language carrying ParentID.
type Job struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId,omitempty"`
	SourceLang         string    `json:"sourceLanguage"`
	TargetLang         string    `json:"targetLanguage"`
	SourceFileName     string    `json:"sourceFileName"`
	SourceFilePath     string    `json:"sourceFilePath"`
	OutputFileName     string    `json:"outputFileName,omitempty"`
	OutputFilePath     string    `json:"outputFilePath,omitempty"`
	GlossaryID         string    `json:"glossaryId,omitempty"`
	Status             Status    `json:"status"`
	ParentID           string    `json:"parentJobId,omitempty"`
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	BilledCharacters   int       `json:"billedCharacters"`
	AppliedCorrections int       `json:"appliedCorrections"`
	MultiLanguage      bool      `json:"isMultiLanguage"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TargetLangs splits the TargetLang of a parent job into its languages.
func (j *Job) TargetLangs() []string {
	if j.TargetLang == "" {
		return nil
	}
	return strings.Split(j.TargetLang, ",")
}

// IsChild reports whether the job was created by a multi-language fan-out.
func (j *Job) IsChild() bool {
	return j.ParentID != ""
}

// QAResult is the outcome of the quality check for one completed job.
type QAResult struct {
	JobID            string            `json:"jobId"`
	GlossaryWarnings []GlossaryWarning `json:"glossaryWarnings"`
	NumberWarnings   []NumberWarning   `json:"numberWarnings"`
	Score            int               `json:"qualityScore"`
	WarningCount     int               `json:"totalWarnings"`
	Evaluated        bool              `json:"evaluated"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// GlossaryWarning records a glossary term whose expected translation is
// missing from the translated segment.
type GlossaryWarning struct {
	SegmentIndex int    `json:"segmentIndex"`
	SourceText   string `json:"sourceText"`
	SourceTerm   string `json:"sourceTerm"`
	ExpectedTerm string `json:"expectedTerm"`
}

type NumberWarningKind string

const (
	NumberCountMismatch NumberWarningKind = "count_mismatch"
	NumberValueMismatch NumberWarningKind = "value_mismatch"
)

// NumberWarning records a numeric inconsistency between source and target.
type NumberWarning struct {
	SegmentIndex int               `json:"segmentIndex"`
	Kind         NumberWarningKind `json:"kind"`
	SourceCount  int               `json:"sourceCount,omitempty"`
	TargetCount  int               `json:"targetCount,omitempty"`
	SourceNumber string            `json:"sourceNumber,omitempty"`
	TargetNumber string            `json:"targetNumber,omitempty"`
}
