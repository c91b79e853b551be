package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store persists jobs, QA results, human corrections and the correction
// memory in a single SQLite database.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers; busy_timeout covers external readers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_file_name TEXT NOT NULL,
		source_file_path TEXT NOT NULL,
		output_file_name TEXT NOT NULL DEFAULT '',
		output_file_path TEXT NOT NULL DEFAULT '',
		glossary_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		parent_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		billed_characters INTEGER NOT NULL DEFAULT 0,
		applied_corrections INTEGER NOT NULL DEFAULT 0,
		multi_language BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- qa_results is written once per completed job and never updated
	CREATE TABLE IF NOT EXISTS qa_results (
		job_id TEXT PRIMARY KEY,
		glossary_warnings TEXT NOT NULL,
		number_warnings TEXT NOT NULL,
		score INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		evaluated BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);

	CREATE TABLE IF NOT EXISTS learned_segments (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		original_target TEXT NOT NULL DEFAULT '',
		improved_target TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 1,
		last_used TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(source_text, source_lang, target_lang)
	);

	CREATE TABLE IF NOT EXISTS learned_terms (
		id TEXT PRIMARY KEY,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(source_term, source_lang, target_lang)
	);

	-- corrections keeps every reviewer submission verbatim
	CREATE TABLE IF NOT EXISTS corrections (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		country_code TEXT NOT NULL DEFAULT '',
		submitted_by TEXT NOT NULL,
		original_text TEXT NOT NULL,
		corrected_text TEXT NOT NULL,
		machine_text TEXT NOT NULL DEFAULT '',
		correction_type TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_parent ON jobs(parent_id);
	CREATE INDEX IF NOT EXISTS idx_segments_lookup ON learned_segments(source_text, source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_terms_pair ON learned_terms(source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_corrections_job ON corrections(job_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Stats summarises the database contents.
type Stats struct {
	JobsByStatus     map[string]int
	LearnedTerms     int
	LearnedSegments  int
	Corrections      int
	TotalTermUses    int
	TotalSegmentUses int
}

// Stats returns summary counts for jobs and the correction memory.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{JobsByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.JobsByStatus[status] = n
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM learned_terms),
			(SELECT COALESCE(SUM(frequency), 0) FROM learned_terms),
			(SELECT COUNT(*) FROM learned_segments),
			(SELECT COALESCE(SUM(usage_count), 0) FROM learned_segments),
			(SELECT COUNT(*) FROM corrections)`).Scan(
		&stats.LearnedTerms,
		&stats.TotalTermUses,
		&stats.LearnedSegments,
		&stats.TotalSegmentUses,
		&stats.Corrections,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
