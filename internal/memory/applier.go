// Package memory blends learned corrections into provider requests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
)

// DefaultOverrideThreshold is the confidence a learned segment needs before
// it replaces a provider call.
const DefaultOverrideThreshold = 0.7

// Store is the part of the correction memory the applier reads.
type Store interface {
	ListTerms(ctx context.Context, sourceLang, targetLang string) ([]job.LearnedTerm, error)
	FindSegmentOverride(ctx context.Context, sourceText, sourceLang, targetLang string) (*job.LearnedSegment, bool, error)
}

// GlossaryProvider creates and deletes provider-side glossaries.
type GlossaryProvider interface {
	CreateGlossary(ctx context.Context, name, sourceLang, targetLang string, entries []translator.GlossaryEntry) (string, error)
	DeleteGlossary(ctx context.Context, glossaryID string) error
}

// Glossary is the glossary a job should translate with.
type Glossary struct {
	ID        string
	Ephemeral bool
	// Terms is the number of learned terms placed in an ephemeral glossary.
	Terms int
}

type Applier struct {
	store    Store
	provider GlossaryProvider
	logger   *slog.Logger
	now      func() time.Time
}

func NewApplier(store Store, provider GlossaryProvider, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// PrepareEnhancedGlossary builds an ephemeral glossary from the learned terms
// of the language pair. Without learned terms, or when the provider refuses
// the glossary, the base glossary is returned unchanged.
func (a *Applier) PrepareEnhancedGlossary(ctx context.Context, sourceLang, targetLang, baseGlossaryID string) (Glossary, error) {
	base := Glossary{ID: baseGlossaryID}

	terms, err := a.store.ListTerms(ctx, sourceLang, targetLang)
	if err != nil {
		return base, fmt.Errorf("failed to list learned terms: %w", err)
	}
	if len(terms) == 0 {
		return base, nil
	}

	entries := make([]translator.GlossaryEntry, 0, len(terms))
	for _, t := range terms {
		entries = append(entries, translator.GlossaryEntry{Source: t.SourceTerm, Target: t.TargetTerm})
	}

	name := GlossaryName(sourceLang, targetLang, a.now())
	id, err := a.provider.CreateGlossary(ctx, name, sourceLang, targetLang, entries)
	if err != nil {
		if ctx.Err() != nil {
			return base, ctx.Err()
		}
		a.logger.Warn("failed to create learned glossary, using base glossary",
			"source_lang", sourceLang, "target_lang", targetLang, "glossary_id", baseGlossaryID,
			"kind", translator.KindOf(err).String(), "error", err)
		return base, nil
	}

	a.logger.Info("created learned glossary", "glossary_id", id, "name", name, "terms", len(entries))
	return Glossary{ID: id, Ephemeral: true, Terms: len(entries)}, nil
}

// TryExactOverride returns the learned translation of sourceText when its
// confidence reaches threshold.
func (a *Applier) TryExactOverride(ctx context.Context, sourceText, sourceLang, targetLang string, threshold float64) (string, bool) {
	seg, ok, err := a.store.FindSegmentOverride(ctx, sourceText, sourceLang, targetLang)
	if err != nil {
		a.logger.Warn("segment override lookup failed", "source_lang", sourceLang, "target_lang", targetLang, "error", err)
		return "", false
	}
	if !ok || seg.Confidence() < threshold {
		return "", false
	}
	return seg.ImprovedTarget, true
}

// Cleanup deletes g when it is ephemeral. Failures are logged only.
func (a *Applier) Cleanup(ctx context.Context, g Glossary) {
	if !g.Ephemeral || g.ID == "" {
		return
	}
	// The job context may already be cancelled; deletion still has to run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := a.provider.DeleteGlossary(ctx, g.ID); err != nil {
		a.logger.Warn("failed to delete learned glossary", "glossary_id", g.ID,
			"kind", translator.KindOf(err).String(), "error", err)
		return
	}
	a.logger.Debug("deleted learned glossary", "glossary_id", g.ID)
}

// GlossaryName names an ephemeral glossary after its language pair and
// creation time.
func GlossaryName(sourceLang, targetLang string, at time.Time) string {
	return fmt.Sprintf("learned-%s-%s-%d", sourceLang, targetLang, at.Unix())
}
