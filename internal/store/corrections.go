package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

// SaveCorrection stores a reviewer correction verbatim.
func (s *Store) SaveCorrection(ctx context.Context, c *job.Correction) error {
	return saveCorrection(ctx, s.db, c)
}

// SubmitCorrections stores every correction and records it in the memory of
// sourceLang and the correction's target language in one transaction. On
// error nothing is stored and no memory counter moves.
func (s *Store) SubmitCorrections(ctx context.Context, sourceLang string, cs []*job.Correction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, c := range cs {
		if err := saveCorrection(ctx, tx, c); err != nil {
			return fmt.Errorf("correction %d: %w", i, err)
		}
		if err := recordCorrection(ctx, tx, c.OriginalText, c.CorrectedText, c.MachineText,
			c.Type, sourceLang, c.TargetLang); err != nil {
			return fmt.Errorf("correction %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func saveCorrection(ctx context.Context, db execer, c *job.Correction) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO corrections (id, job_id, target_lang, country_code, submitted_by, original_text, corrected_text, machine_text, correction_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.JobID, c.TargetLang, c.CountryCode, c.SubmittedBy, c.OriginalText, c.CorrectedText,
		c.MachineText, string(c.Type), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	return nil
}

// ListCorrections returns the corrections submitted for a job, oldest first.
func (s *Store) ListCorrections(ctx context.Context, jobID string) ([]job.Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, target_lang, country_code, submitted_by, original_text, corrected_text, machine_text, correction_type, created_at
		 FROM corrections WHERE job_id = ? ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []job.Correction
	for rows.Next() {
		var c job.Correction
		var kind string
		if err := rows.Scan(&c.ID, &c.JobID, &c.TargetLang, &c.CountryCode, &c.SubmittedBy,
			&c.OriginalText, &c.CorrectedText, &c.MachineText, &kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Type = job.CorrectionType(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}
