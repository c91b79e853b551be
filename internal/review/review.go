// Package review accepts reviewer corrections of finished translations and
// feeds them into the correction memory.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/notify"
	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type Store interface {
	GetJob(ctx context.Context, id string) (*job.Job, error)
	SubmitCorrections(ctx context.Context, sourceLang string, cs []*job.Correction) error
	RecordCorrectionWithMachineText(ctx context.Context, original, corrected, machineText string, kind job.CorrectionType, sourceLang, targetLang string) error
}

// Item is one correction. OriginalText is the source text (a term or a whole
// segment), CorrectedText the translation the reviewer wants. MachineText is
// the translation being replaced, when the client knows it.
type Item struct {
	OriginalText  string             `json:"originalText"`
	CorrectedText string             `json:"correctedText"`
	MachineText   string             `json:"machineText,omitempty"`
	Type          job.CorrectionType `json:"type"`
}

type Submission struct {
	JobID       string `json:"jobId"`
	TargetLang  string `json:"targetLanguage"`
	CountryCode string `json:"countryCode"`
	SubmittedBy string `json:"submittedBy"`
	Corrections []Item `json:"corrections"`
}

// Result summarises an accepted submission.
type Result struct {
	JobID       string `json:"jobId"`
	Saved       int    `json:"saved"`
	Terminology int    `json:"terminology"`
	Phrasing    int    `json:"phrasing"`
}

type Service struct {
	store    Store
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(store Store, notifier notify.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Submit validates sub as a whole, then stores every correction and records
// it in the correction memory of the job's language pair in one transaction.
// Nothing is stored when validation or storage fails.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	j, lang, err := s.validate(ctx, sub)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(sub.SubmittedBy)
	country := strings.ToUpper(strings.TrimSpace(sub.CountryCode))
	res := &Result{JobID: j.ID}

	cs := make([]*job.Correction, 0, len(sub.Corrections))
	for _, item := range sub.Corrections {
		cs = append(cs, &job.Correction{
			JobID:         j.ID,
			TargetLang:    lang,
			CountryCode:   country,
			SubmittedBy:   email,
			OriginalText:  strings.TrimSpace(item.OriginalText),
			CorrectedText: strings.TrimSpace(item.CorrectedText),
			MachineText:   strings.TrimSpace(item.MachineText),
			Type:          item.Type,
		})
	}
	if err := s.store.SubmitCorrections(ctx, j.SourceLang, cs); err != nil {
		return nil, err
	}

	for _, c := range cs {
		res.Saved++
		if c.Type == job.CorrectionTerminology {
			res.Terminology++
		} else {
			res.Phrasing++
		}
	}

	s.logger.Info("corrections recorded", "job_id", j.ID, "target_lang", lang,
		"terminology", res.Terminology, "phrasing", res.Phrasing)

	ev := notify.CorrectionEvent{
		JobID:       j.ID,
		TargetLang:  lang,
		CountryCode: country,
		SubmittedBy: email,
		Corrections: res.Saved,
		Terminology: res.Terminology,
		Phrasing:    res.Phrasing,
		At:          time.Now().UTC(),
	}
	if err := s.notifier.CorrectionSubmitted(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("failed to send correction notification", "job_id", j.ID, "error", err)
	}
	return res, nil
}

func (s *Service) validate(ctx context.Context, sub Submission) (*job.Job, string, error) {
	if strings.TrimSpace(sub.JobID) == "" {
		return nil, "", invalid("jobId", "a job id is required")
	}
	if err := validEmail(sub.SubmittedBy); err != nil {
		return nil, "", err
	}
	if len(sub.Corrections) == 0 {
		return nil, "", invalid("corrections", "at least one correction is required")
	}
	for i, item := range sub.Corrections {
		switch {
		case strings.TrimSpace(item.OriginalText) == "":
			return nil, "", invalid("corrections", "correction %d: original text is required", i)
		case strings.TrimSpace(item.CorrectedText) == "":
			return nil, "", invalid("corrections", "correction %d: corrected text is required", i)
		case !item.Type.Valid():
			return nil, "", invalid("corrections", "correction %d: unknown type %q", i, item.Type)
		}
	}

	lang, err := orchestrator.NormalizeLang(sub.TargetLang)
	if err != nil {
		return nil, "", invalid("targetLanguage", "%v", err)
	}

	j, err := s.store.GetJob(ctx, strings.TrimSpace(sub.JobID))
	if err != nil {
		return nil, "", err
	}
	if !slices.Contains(j.TargetLangs(), lang) {
		return nil, "", invalid("targetLanguage", "job %s was not translated to %s", j.ID, lang)
	}
	return j, lang, nil
}

// validEmail accepts a bare address only, no display name.
func validEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return invalid("submittedBy", "an email address is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(addr.Address[strings.LastIndexByte(addr.Address, '@')+1:], ".") {
		return invalid("submittedBy", "%q is not a valid email address", s)
	}
	return nil
}
