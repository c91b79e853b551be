package review

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/notify"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.CorrectionEvent
	err    error
}

func (n *recordingNotifier) TranslationReady(context.Context, notify.ReadyEvent) error { return nil }

func (n *recordingNotifier) CorrectionSubmitted(_ context.Context, ev notify.CorrectionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func setup(t *testing.T) (*Service, *store.Store, *recordingNotifier) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	parent := &job.Job{ID: "parent-1", SourceLang: "EN", TargetLang: "DE,FR", SourceFileName: "a.md",
		SourceFilePath: "/tmp/a.md", Status: job.StatusPending, MultiLanguage: true}
	require.NoError(t, s.CreateJob(ctx, parent))

	n := &recordingNotifier{}
	return NewService(s, n, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))), s, n
}

func validSubmission() Submission {
	return Submission{
		JobID:       "parent-1",
		TargetLang:  "de",
		CountryCode: "de",
		SubmittedBy: "reviewer@example.com",
		Corrections: []Item{
			{OriginalText: "invoice", CorrectedText: "Rechnung", Type: job.CorrectionTerminology},
			{OriginalText: "Thank you for your order.", CorrectedText: "Vielen Dank für Ihre Bestellung.",
				MachineText: "Danke für Ihre Bestellung.", Type: job.CorrectionPhrasing},
		},
	}
}

func TestSubmit(t *testing.T) {
	svc, s, n := setup(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, validSubmission())
	require.NoError(t, err)
	assert.Equal(t, &Result{JobID: "parent-1", Saved: 2, Terminology: 1, Phrasing: 1}, res)

	saved, err := s.ListCorrections(ctx, "parent-1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "DE", saved[0].TargetLang)
	assert.Equal(t, "DE", saved[0].CountryCode)
	assert.Equal(t, "reviewer@example.com", saved[0].SubmittedBy)

	terms, err := s.ListTerms(ctx, "EN", "DE")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "Rechnung", terms[0].TargetTerm)

	seg, ok, err := s.FindSegmentOverride(ctx, "Thank you for your order.", "EN", "DE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Danke für Ihre Bestellung.", seg.OriginalTarget)
	assert.Equal(t, "Vielen Dank für Ihre Bestellung.", seg.ImprovedTarget)
	assert.Equal(t, 1, seg.UsageCount)

	require.Len(t, n.events, 1)
	assert.Equal(t, notify.CorrectionEvent{
		JobID: "parent-1", TargetLang: "DE", CountryCode: "DE", SubmittedBy: "reviewer@example.com",
		Corrections: 2, Terminology: 1, Phrasing: 1, At: n.events[0].At,
	}, n.events[0])
}

func TestSubmit_RepeatedCorrectionIncrementsUsage(t *testing.T) {
	svc, s, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, validSubmission())
		require.NoError(t, err)
	}

	terms, err := s.ListTerms(ctx, "EN", "DE")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, 3, terms[0].Frequency)

	segs, err := s.ListSegments(ctx, "EN", "DE")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 3, segs[0].UsageCount)
	assert.InDelta(t, 1.0, segs[0].Confidence(), 1e-9)
}

func TestSubmit_PhrasingWithoutMachineText(t *testing.T) {
	svc, s, _ := setup(t)
	ctx := context.Background()

	sub := validSubmission()
	sub.Corrections = []Item{{OriginalText: "See you soon.", CorrectedText: "Bis bald.", Type: job.CorrectionPhrasing}}
	_, err := svc.Submit(ctx, sub)
	require.NoError(t, err)

	seg, ok, err := s.FindSegmentOverride(ctx, "See you soon.", "EN", "DE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, seg.OriginalTarget, "source text is never stored as the machine translation")
}

func TestSubmit_Validation(t *testing.T) {
	svc, s, n := setup(t)

	tests := []struct {
		name   string
		modify func(*Submission)
		field  string
	}{
		{"no job id", func(s *Submission) { s.JobID = " " }, "jobId"},
		{"no email", func(s *Submission) { s.SubmittedBy = "" }, "submittedBy"},
		{"bad email", func(s *Submission) { s.SubmittedBy = "not-an-email" }, "submittedBy"},
		{"email with name", func(s *Submission) { s.SubmittedBy = "Rev <rev@example.com>" }, "submittedBy"},
		{"email without domain dot", func(s *Submission) { s.SubmittedBy = "rev@localhost" }, "submittedBy"},
		{"no corrections", func(s *Submission) { s.Corrections = nil }, "corrections"},
		{"empty original", func(s *Submission) { s.Corrections[0].OriginalText = "  " }, "corrections"},
		{"empty corrected", func(s *Submission) { s.Corrections[1].CorrectedText = "" }, "corrections"},
		{"unknown type", func(s *Submission) { s.Corrections[0].Type = "style" }, "corrections"},
		{"bad language", func(s *Submission) { s.TargetLang = "not a language" }, "targetLanguage"},
		{"language not in job", func(s *Submission) { s.TargetLang = "ES" }, "targetLanguage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.modify(&sub)
			_, err := svc.Submit(context.Background(), sub)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	saved, err := s.ListCorrections(context.Background(), "parent-1")
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Empty(t, n.events)
}

func TestSubmit_UnknownJob(t *testing.T) {
	svc, _, _ := setup(t)
	sub := validSubmission()
	sub.JobID = "missing"

	_, err := svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_NotificationFailureIsNotAnError(t *testing.T) {
	svc, _, n := setup(t)
	n.err = errors.New("mail server down")

	res, err := svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
}

// failingStore fails the first SubmitCorrections call.
type failingStore struct {
	*store.Store
	failed bool
}

func (f *failingStore) SubmitCorrections(ctx context.Context, sourceLang string, cs []*job.Correction) error {
	if !f.failed {
		f.failed = true
		return errors.New("database is locked")
	}
	return f.Store.SubmitCorrections(ctx, sourceLang, cs)
}

func TestSubmit_StorageFailureCanBeRetried(t *testing.T) {
	_, s, n := setup(t)
	svc := NewService(&failingStore{Store: s}, n, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	ctx := context.Background()

	res, err := svc.Submit(ctx, validSubmission())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Empty(t, n.events)

	_, err = svc.Submit(ctx, validSubmission())
	require.NoError(t, err)

	terms, err := s.ListTerms(ctx, "EN", "DE")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, 1, terms[0].Frequency, "the failed attempt counted nothing")
	assert.Len(t, n.events, 1)
}
