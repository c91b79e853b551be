// Package notify tells users and reviewers that translations are ready or
// that corrections came in. Delivery itself happens elsewhere; this package
// renders messages and hands them off.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LanguageResult describes one completed target language.
type LanguageResult struct {
	Lang           string `json:"language"`
	JobID          string `json:"jobId"`
	OutputFileName string `json:"outputFileName"`
	QualityScore   int    `json:"qualityScore"`
	Warnings       int    `json:"totalWarnings"`
	Evaluated      bool   `json:"evaluated"`
}

// ReadyEvent is sent once per submission when its translations are done.
// Languages lists completed languages only.
type ReadyEvent struct {
	JobID          string           `json:"jobId"`
	UserID         string           `json:"userId"`
	SourceFileName string           `json:"sourceFileName"`
	SourceLang     string           `json:"sourceLanguage"`
	Languages      []LanguageResult `json:"languages"`
	ReviewURL      string           `json:"reviewUrl"`
	At             time.Time        `json:"at"`
}

type CorrectionEvent struct {
	JobID       string    `json:"jobId"`
	TargetLang  string    `json:"targetLanguage"`
	CountryCode string    `json:"countryCode,omitempty"`
	SubmittedBy string    `json:"submittedBy"`
	Corrections int       `json:"corrections"`
	Terminology int       `json:"terminology"`
	Phrasing    int       `json:"phrasing"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	TranslationReady(ctx context.Context, ev ReadyEvent) error
	CorrectionSubmitted(ctx context.Context, ev CorrectionEvent) error
}

// Multi forwards every event to all notifiers.
type Multi []Notifier

func (m Multi) TranslationReady(ctx context.Context, ev ReadyEvent) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.TranslationReady(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m Multi) CorrectionSubmitted(ctx context.Context, ev CorrectionEvent) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.CorrectionSubmitted(ctx, ev))
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) TranslationReady(ctx context.Context, ev ReadyEvent) error {
	langs := make([]string, 0, len(ev.Languages))
	for _, l := range ev.Languages {
		langs = append(langs, l.Lang)
	}
	n.logger().InfoContext(ctx, "translation ready",
		"job_id", ev.JobID, "user_id", ev.UserID, "languages", langs, "review_url", ev.ReviewURL)
	return nil
}

func (n LogNotifier) CorrectionSubmitted(ctx context.Context, ev CorrectionEvent) error {
	n.logger().InfoContext(ctx, "corrections submitted",
		"job_id", ev.JobID, "target_lang", ev.TargetLang, "submitted_by", ev.SubmittedBy,
		"corrections", ev.Corrections)
	return nil
}
