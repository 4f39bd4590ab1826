package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/legalease/internal/jobs"
)

// JobStore implements jobs.Store on top of PostgreSQL. Every write is
// committed before the method returns, so a restarted server observes
// the last finished stage.
type JobStore struct {
	db *DB
}

// NewJobStore creates a store backed by an open connection pool.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job record in its initial status. Re-submitting a
// document reuses its job ID, so an existing row (failed, stale, or
// force-reimported) is reset to a clean queued record and its old page
// results are discarded.
func (s *JobStore) Create(ctx context.Context, job *jobs.Job) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, source_kind, source_path, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET owner_id = $2, source_kind = $3, source_path = $4, status = $5,
		     current_page = NULL, total_pages = NULL, summary = NULL,
		     output_path = NULL, error_message = NULL, completed_at = NULL,
		     updated_at = NOW()`,
		job.ID, job.OwnerID, job.SourceKind, job.SourcePath, job.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	_, err = s.db.pool.Exec(ctx, `DELETE FROM page_results WHERE job_id = $1`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to clear page results: %w", err)
	}
	return nil
}

// Get retrieves a job with its page results, or (nil, nil) when no job
// exists for the ID.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var j jobs.Job
	err := s.db.pool.QueryRow(ctx,
		`SELECT id, owner_id, source_kind, source_path, status, current_page,
		        total_pages, summary, output_path, error_message,
		        created_at, updated_at, completed_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.OwnerID, &j.SourceKind, &j.SourcePath, &j.Status,
		&j.CurrentPage, &j.TotalPages, &j.Summary, &j.OutputPath, &j.ErrorMsg,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	pages, err := s.pageResults(ctx, id)
	if err != nil {
		return nil, err
	}
	j.PageResults = pages
	return &j, nil
}

func (s *JobStore) pageResults(ctx context.Context, id uuid.UUID) ([]jobs.PageResult, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT page_number, original_text, translated_text, simplified_text, error_note
		 FROM page_results WHERE job_id = $1 ORDER BY page_number`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get page results: %w", err)
	}
	defer rows.Close()

	var pages []jobs.PageResult
	for rows.Next() {
		var p jobs.PageResult
		if err := rows.Scan(&p.PageNumber, &p.OriginalText, &p.TranslatedText, &p.SimplifiedText, &p.Error); err != nil {
			return nil, fmt.Errorf("failed to scan page result: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read page results: %w", err)
	}
	return pages, nil
}

// SetStatus writes one status transition. Page counters only change when
// the update carries them.
func (s *JobStore) SetStatus(ctx context.Context, id uuid.UUID, update jobs.StatusUpdate) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $1,
		     current_page = COALESCE($2, current_page),
		     total_pages = COALESCE($3, total_pages),
		     updated_at = NOW()
		 WHERE id = $4`,
		update.Status, update.CurrentPage, update.TotalPages, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound{ID: id}
	}
	return nil
}

// AppendPageResult persists one page's output. Re-running a page after a
// crash overwrites the earlier row instead of duplicating it.
func (s *JobStore) AppendPageResult(ctx context.Context, id uuid.UUID, page jobs.PageResult) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO page_results (job_id, page_number, original_text, translated_text, simplified_text, error_note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id, page_number)
		 DO UPDATE SET original_text = $3, translated_text = $4, simplified_text = $5, error_note = $6`,
		id, page.PageNumber, page.OriginalText, page.TranslatedText, page.SimplifiedText, page.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save page result: %w", err)
	}
	_, err = s.db.pool.Exec(ctx, `UPDATE jobs SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch job: %w", err)
	}
	return nil
}

// Complete writes the terminal success record. The error field is
// cleared so exactly one terminal field survives a re-run.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, summary string, outputPath *string) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $1, summary = $2, output_path = $3, error_message = NULL,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $4`,
		jobs.StatusCompleted, summary, outputPath, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound{ID: id}
	}
	return nil
}

// Fail writes the terminal failure record, clearing any success fields
// left by an earlier run of the same document.
func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $1, error_message = $2, summary = NULL, output_path = NULL,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $3`,
		jobs.StatusFailed, message, id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound{ID: id}
	}
	return nil
}

var _ jobs.Store = (*JobStore)(nil)
