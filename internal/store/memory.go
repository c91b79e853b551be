package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

// FindSegmentOverride returns the learned segment whose source text matches
// sourceText exactly (after trimming) for the language pair. The match is
// case-sensitive.
func (s *Store) FindSegmentOverride(ctx context.Context, sourceText, sourceLang, targetLang string) (*job.LearnedSegment, bool, error) {
	var seg job.LearnedSegment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_text, original_target, improved_target, source_lang, target_lang, usage_count, last_used, created_at
		 FROM learned_segments
		 WHERE source_text = ? AND source_lang = ? AND target_lang = ?
		 ORDER BY usage_count DESC
		 LIMIT 1`,
		normalizeText(sourceText), sourceLang, targetLang).Scan(
		&seg.ID, &seg.SourceText, &seg.OriginalTarget, &seg.ImprovedTarget,
		&seg.SourceLang, &seg.TargetLang, &seg.UsageCount, &seg.LastUsedAt, &seg.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &seg, true, nil
}

// ListTerms returns the learned terms for a language pair, most frequent first.
func (s *Store) ListTerms(ctx context.Context, sourceLang, targetLang string) ([]job.LearnedTerm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_term, target_term, source_lang, target_lang, frequency, updated_at, created_at
		 FROM learned_terms
		 WHERE source_lang = ? AND target_lang = ?
		 ORDER BY frequency DESC, source_term ASC`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []job.LearnedTerm
	for rows.Next() {
		var t job.LearnedTerm
		if err := rows.Scan(&t.ID, &t.SourceTerm, &t.TargetTerm, &t.SourceLang, &t.TargetLang, &t.Frequency, &t.UpdatedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// ListSegments returns the learned segments for a language pair, most used first.
func (s *Store) ListSegments(ctx context.Context, sourceLang, targetLang string) ([]job.LearnedSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, original_target, improved_target, source_lang, target_lang, usage_count, last_used, created_at
		 FROM learned_segments
		 WHERE source_lang = ? AND target_lang = ?
		 ORDER BY usage_count DESC, last_used DESC`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []job.LearnedSegment
	for rows.Next() {
		var seg job.LearnedSegment
		if err := rows.Scan(&seg.ID, &seg.SourceText, &seg.OriginalTarget, &seg.ImprovedTarget,
			&seg.SourceLang, &seg.TargetLang, &seg.UsageCount, &seg.LastUsedAt, &seg.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// RecordCorrection feeds one human correction into the correction memory.
func (s *Store) RecordCorrection(ctx context.Context, original, corrected string, kind job.CorrectionType, sourceLang, targetLang string) error {
	return s.RecordCorrectionWithMachineText(ctx, original, corrected, "", kind, sourceLang, targetLang)
}

// RecordCorrectionWithMachineText is RecordCorrection for phrasing corrections
// that know which machine translation the reviewer replaced. machineText is
// stored as the segment's original target; it is ignored for terminology.
//
// Both upserts are single statements, so concurrent corrections of the same
// key never lose an increment and the last writer's text wins.
func (s *Store) RecordCorrectionWithMachineText(ctx context.Context, original, corrected, machineText string, kind job.CorrectionType, sourceLang, targetLang string) error {
	return recordCorrection(ctx, s.db, original, corrected, machineText, kind, sourceLang, targetLang)
}

func recordCorrection(ctx context.Context, db execer, original, corrected, machineText string, kind job.CorrectionType, sourceLang, targetLang string) error {
	original = normalizeText(original)
	corrected = normalizeText(corrected)
	if original == "" || corrected == "" {
		return fmt.Errorf("correction requires both original and corrected text")
	}
	now := time.Now().UTC()

	switch kind {
	case job.CorrectionTerminology:
		_, err := db.ExecContext(ctx,
			`INSERT INTO learned_terms (id, source_term, target_term, source_lang, target_lang, frequency, updated_at, created_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			 ON CONFLICT(source_term, source_lang, target_lang) DO UPDATE SET
				frequency = frequency + 1,
				target_term = excluded.target_term,
				updated_at = excluded.updated_at`,
			uuid.NewString(), original, corrected, sourceLang, targetLang, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert learned term: %w", err)
		}
		return nil

	case job.CorrectionPhrasing:
		_, err := db.ExecContext(ctx,
			`INSERT INTO learned_segments (id, source_text, original_target, improved_target, source_lang, target_lang, usage_count, last_used, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
			 ON CONFLICT(source_text, source_lang, target_lang) DO UPDATE SET
				usage_count = usage_count + 1,
				improved_target = excluded.improved_target,
				original_target = CASE WHEN excluded.original_target != '' THEN excluded.original_target ELSE original_target END,
				last_used = excluded.last_used`,
			uuid.NewString(), original, normalizeText(machineText), corrected, sourceLang, targetLang, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert learned segment: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown correction type: %q", kind)
	}
}
