package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) repository.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `id, job_id, status, started_at, completed_at, duration_ms, size,
	compressed_size, file_count, archive_path, manifest_path, errors, warnings`

func (r *runRepository) Create(ctx context.Context, run *domain.BackupRun) error {
	query := `
		INSERT INTO run (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	errorsJSON, warningsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.JobID,
		run.Status,
		run.StartedAt,
		nullTime(run.CompletedAt),
		run.Duration.Milliseconds(),
		run.Size,
		run.CompressedSize,
		run.FileCount,
		run.ArchivePath,
		run.ManifestPath,
		errorsJSON,
		warningsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (r *runRepository) FindByID(ctx context.Context, id string) (*domain.BackupRun, error) {
	query := `SELECT ` + runColumns + ` FROM run WHERE id = ?`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	checks, err := r.FindChecksByRun(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Checks = checks
	return run, nil
}

func (r *runRepository) Update(ctx context.Context, run *domain.BackupRun) error {
	query := `
		UPDATE run
		SET status = ?, completed_at = ?, duration_ms = ?, size = ?, compressed_size = ?,
		    file_count = ?, archive_path = ?, manifest_path = ?, errors = ?, warnings = ?
		WHERE id = ?
	`

	errorsJSON, warningsJSON, err := marshalRunLists(run)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		run.Status,
		nullTime(run.CompletedAt),
		run.Duration.Milliseconds(),
		run.Size,
		run.CompressedSize,
		run.FileCount,
		run.ArchivePath,
		run.ManifestPath,
		errorsJSON,
		warningsJSON,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (r *runRepository) List(ctx context.Context, filter repository.RunFilter) ([]*domain.BackupRun, error) {
	query := `SELECT ` + runColumns + ` FROM run WHERE 1=1`
	args := []interface{}{}

	if filter.JobID != nil {
		query += " AND job_id = ?"
		args = append(args, *filter.JobID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}

	query, args = ApplyFilters(query, args, filter.Filters)
	query = ApplyOrdering(query, filter.Order, "started_at DESC")
	query, args = ApplyPagination(query, args, filter.Page, filter.PerPage)

	return r.queryRuns(ctx, query, args...)
}

func (r *runRepository) Count(ctx context.Context, filter repository.RunFilter) (int, error) {
	query := `SELECT COUNT(*) FROM run WHERE 1=1`
	args := []interface{}{}

	if filter.JobID != nil {
		query += " AND job_id = ?"
		args = append(args, *filter.JobID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query, args = ApplyFilters(query, args, filter.Filters)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func (r *runRepository) FindByJob(ctx context.Context, jobID string) ([]*domain.BackupRun, error) {
	query := `SELECT ` + runColumns + ` FROM run WHERE job_id = ? ORDER BY started_at ASC`
	return r.queryRuns(ctx, query, jobID)
}

func (r *runRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM run WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}

func (r *runRepository) FindWithIntegrityIssues(ctx context.Context) ([]*domain.BackupRun, error) {
	query := `
		SELECT DISTINCT ` + prefixColumns(runColumns, "run.") + `
		FROM run
		JOIN integrity_check ON integrity_check.run_id = run.id
		WHERE integrity_check.status IN (?, ?)
		ORDER BY run.started_at DESC
	`
	runs, err := r.queryRuns(ctx, query, domain.CheckStatusFailed, domain.CheckStatusError)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		checks, err := r.FindChecksByRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.Checks = checks
	}
	return runs, nil
}

func (r *runRepository) CreateCheck(ctx context.Context, check *domain.IntegrityCheck) error {
	query := `
		INSERT INTO integrity_check (id, run_id, type, algorithm, checksum, status, verified_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		check.ID,
		check.RunID,
		check.Type,
		check.Algorithm,
		check.Checksum,
		check.Status,
		nullTime(check.VerifiedAt),
		NullString(check.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to create integrity check: %w", err)
	}
	return nil
}

func (r *runRepository) FindChecksByRun(ctx context.Context, runID string) ([]domain.IntegrityCheck, error) {
	query := `
		SELECT id, run_id, type, algorithm, checksum, status, verified_at, error
		FROM integrity_check
		WHERE run_id = ?
		ORDER BY verified_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to find integrity checks: %w", err)
	}
	defer rows.Close()

	var checks []domain.IntegrityCheck
	for rows.Next() {
		var check domain.IntegrityCheck
		var verifiedAt sql.NullTime
		var checkErr sql.NullString
		if err := rows.Scan(
			&check.ID,
			&check.RunID,
			&check.Type,
			&check.Algorithm,
			&check.Checksum,
			&check.Status,
			&verifiedAt,
			&checkErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan integrity check: %w", err)
		}
		if verifiedAt.Valid {
			check.VerifiedAt = &verifiedAt.Time
		}
		if checkErr.Valid {
			check.Error = &checkErr.String
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrity checks: %w", err)
	}
	return checks, nil
}

func (r *runRepository) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*domain.BackupRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BackupRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func marshalRunLists(run *domain.BackupRun) (string, string, error) {
	errorsJSON, err := json.Marshal(emptyIfNilErrors(run.Errors))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal run errors: %w", err)
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal run warnings: %w", err)
	}
	return string(errorsJSON), string(warningsJSON), nil
}

func emptyIfNilErrors(errs []domain.BackupError) []domain.BackupError {
	if errs == nil {
		return []domain.BackupError{}
	}
	return errs
}

func scanRun(row rowScanner) (*domain.BackupRun, error) {
	var run domain.BackupRun
	var completedAt sql.NullTime
	var durationMS int64
	var errorsJSON, warningsJSON string

	err := row.Scan(
		&run.ID,
		&run.JobID,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&durationMS,
		&run.Size,
		&run.CompressedSize,
		&run.FileCount,
		&run.ArchivePath,
		&run.ManifestPath,
		&errorsJSON,
		&warningsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to parse run errors: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return nil, fmt.Errorf("failed to parse run warnings: %w", err)
	}

	return &run, nil
}

func prefixColumns(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
