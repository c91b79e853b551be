package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

const jobColumns = `id, user_id, source_lang, target_lang, source_file_name, source_file_path,
	output_file_name, output_file_path, glossary_id, status, parent_id, error_message,
	billed_characters, applied_corrections, multi_language, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var j job.Job
	var status string
	err := row.Scan(&j.ID, &j.UserID, &j.SourceLang, &j.TargetLang, &j.SourceFileName, &j.SourceFilePath,
		&j.OutputFileName, &j.OutputFilePath, &j.GlossaryID, &status, &j.ParentID, &j.ErrorMessage,
		&j.BilledCharacters, &j.AppliedCorrections, &j.MultiLanguage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = job.Status(status)
	return &j, nil
}

// CreateJob inserts j. CreatedAt and UpdatedAt are filled in when zero.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	if j.Status == "" {
		j.Status = job.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.SourceLang, j.TargetLang, j.SourceFileName, j.SourceFilePath,
		j.OutputFileName, j.OutputFilePath, j.GlossaryID, string(j.Status), j.ParentID, j.ErrorMessage,
		j.BilledCharacters, j.AppliedCorrections, j.MultiLanguage, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", j.ID, err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return j, nil
}

// ListChildJobs returns the children of a multi-language job in creation order.
func (s *Store) ListChildJobs(ctx context.Context, parentID string) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE parent_id = ? ORDER BY created_at ASC, target_lang ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListJobs returns the most recent top-level jobs.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE parent_id = '' ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkProcessing moves a pending job to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, job.StatusProcessing,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		string(job.StatusProcessing), time.Now().UTC(), id)
}

// Completion is what a successful job persists alongside its QA result.
type Completion struct {
	OutputFileName     string
	OutputFilePath     string
	BilledCharacters   int
	AppliedCorrections int
}

// CompleteJob stores the QA result and marks the job completed in one
// transaction, so a job is never visible as completed without its result.
func (s *Store) CompleteJob(ctx context.Context, id string, c Completion, qa job.QAResult) error {
	if c.OutputFilePath == "" {
		return fmt.Errorf("job %s: completion requires an output path", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertQAResult(ctx, tx, id, qa); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output_file_name = ?, output_file_path = ?, billed_characters = ?,
			applied_corrections = ?, error_message = '', updated_at = ?
		 WHERE id = ? AND status = 'processing'`,
		string(job.StatusCompleted), c.OutputFileName, c.OutputFilePath, c.BilledCharacters,
		c.AppliedCorrections, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not processing", id)
	}

	return tx.Commit()
}

// FailJob marks a job failed with msg. Output paths are cleared so a failed
// job never exposes partial output.
func (s *Store) FailJob(ctx context.Context, id, msg string) error {
	if msg == "" {
		msg = "translation failed"
	}
	return s.transition(ctx, id, job.StatusFailed,
		`UPDATE jobs SET status = ?, error_message = ?, output_file_name = '', output_file_path = '', updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		string(job.StatusFailed), msg, time.Now().UTC(), id)
}

// FinishParent records the aggregated outcome of a multi-language job.
// note carries the partial-failure summary and may be empty.
func (s *Store) FinishParent(ctx context.Context, id string, status job.Status, outputPath, note string, billed, applied int) error {
	if !status.Terminal() {
		return fmt.Errorf("parent %s: %s is not a terminal status", id, status)
	}
	if status == job.StatusFailed {
		outputPath = ""
	}
	return s.transition(ctx, id, status,
		`UPDATE jobs SET status = ?, output_file_path = ?, error_message = ?, billed_characters = ?,
			applied_corrections = ?, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		string(status), outputPath, note, billed, applied, time.Now().UTC(), id)
}

func (s *Store) transition(ctx context.Context, id string, to job.Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s cannot move to %s", id, to)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQAResult(ctx context.Context, db execer, jobID string, qa job.QAResult) error {
	glossary, err := json.Marshal(qa.GlossaryWarnings)
	if err != nil {
		return fmt.Errorf("failed to encode glossary warnings: %w", err)
	}
	numbers, err := json.Marshal(qa.NumberWarnings)
	if err != nil {
		return fmt.Errorf("failed to encode number warnings: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO qa_results (job_id, glossary_warnings, number_warnings, score, warning_count, evaluated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, string(glossary), string(numbers), qa.Score, qa.WarningCount, qa.Evaluated, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save QA result for job %s: %w", jobID, err)
	}
	return nil
}

// GetQAResult returns the QA result of a job, or ErrNotFound.
func (s *Store) GetQAResult(ctx context.Context, jobID string) (*job.QAResult, error) {
	var qa job.QAResult
	var glossary, numbers string
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, glossary_warnings, number_warnings, score, warning_count, evaluated, created_at
		 FROM qa_results WHERE job_id = ?`, jobID).Scan(
		&qa.JobID, &glossary, &numbers, &qa.Score, &qa.WarningCount, &qa.Evaluated, &qa.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("qa result for job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get QA result: %w", err)
	}

	if err := json.Unmarshal([]byte(glossary), &qa.GlossaryWarnings); err != nil {
		return nil, fmt.Errorf("failed to decode glossary warnings: %w", err)
	}
	if err := json.Unmarshal([]byte(numbers), &qa.NumberWarnings); err != nil {
		return nil, fmt.Errorf("failed to decode number warnings: %w", err)
	}
	return &qa, nil
}
