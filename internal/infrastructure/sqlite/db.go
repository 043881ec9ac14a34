package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS job (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	source TEXT NOT NULL,      -- JSON object
	destination TEXT NOT NULL, -- JSON object
	schedule TEXT NOT NULL,    -- JSON object
	retention TEXT NOT NULL,   -- JSON object
	encryption TEXT NOT NULL,  -- JSON object
	compression TEXT NOT NULL, -- JSON object
	status TEXT NOT NULL,
	labels TEXT,               -- JSON object
	schedule_enabled INTEGER NOT NULL DEFAULT 0,
	last_run_at DATETIME,
	next_run_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	compressed_size INTEGER NOT NULL DEFAULT 0,
	file_count INTEGER NOT NULL DEFAULT 0,
	archive_path TEXT NOT NULL DEFAULT '',
	manifest_path TEXT NOT NULL DEFAULT '',
	errors TEXT NOT NULL DEFAULT '[]',   -- JSON array
	warnings TEXT NOT NULL DEFAULT '[]', -- JSON array
	FOREIGN KEY (job_id) REFERENCES job(id) ON DELETE RESTRICT
);

CREATE TABLE IF NOT EXISTS integrity_check (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	type TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	verified_at DATETIME,
	error TEXT,
	FOREIGN KEY (run_id) REFERENCES run(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS test (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	results TEXT NOT NULL DEFAULT '[]',  -- JSON array
	failures TEXT NOT NULL DEFAULT '[]', -- JSON array
	FOREIGN KEY (run_id) REFERENCES run(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS restore (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	type TEXT NOT NULL,
	target_path TEXT NOT NULL,
	status TEXT NOT NULL,
	restored_files INTEGER NOT NULL DEFAULT 0,
	sandbox INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	errors TEXT NOT NULL DEFAULT '[]', -- JSON array
	FOREIGN KEY (run_id) REFERENCES run(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON job(status);
CREATE INDEX IF NOT EXISTS idx_jobs_next_run_at ON job(next_run_at);
CREATE INDEX IF NOT EXISTS idx_runs_job_id ON run(job_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON run(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON run(started_at);
CREATE INDEX IF NOT EXISTS idx_checks_run_id ON integrity_check(run_id);
CREATE INDEX IF NOT EXISTS idx_checks_status ON integrity_check(status);
CREATE INDEX IF NOT EXISTS idx_tests_run_id ON test(run_id);
CREATE INDEX IF NOT EXISTS idx_restores_run_id ON restore(run_id);
`

type DB struct {
	*sqlx.DB
}

func New(dbPath string) (*DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// WAL for concurrent readers while the engine writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// NullString helper for optional string fields
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
