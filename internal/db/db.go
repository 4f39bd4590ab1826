// Package db provides PostgreSQL persistence for processing jobs.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the schema if it does not exist yet. Page results live
// in their own table so appends never rewrite the job row.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
  id UUID PRIMARY KEY,
  owner_id UUID NOT NULL,
  source_kind TEXT NOT NULL,
  source_path TEXT NOT NULL,
  status TEXT NOT NULL,
  current_page INT,
  total_pages INT,
  summary TEXT,
  output_path TEXT,
  error_message TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  completed_at TIMESTAMPTZ
)`,
		`CREATE TABLE IF NOT EXISTS page_results (
  job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  page_number INT NOT NULL,
  original_text TEXT NOT NULL DEFAULT '',
  translated_text TEXT NOT NULL DEFAULT '',
  simplified_text TEXT NOT NULL DEFAULT '',
  error_note TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (job_id, page_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_owner ON jobs(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	}
	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}
