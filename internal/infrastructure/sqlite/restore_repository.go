package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

type restoreRepository struct {
	db *DB
}

func NewRestoreRepository(db *DB) repository.RestoreRepository {
	return &restoreRepository{db: db}
}

const restoreColumns = `id, run_id, type, target_path, status, restored_files, sandbox,
	started_at, completed_at, errors`

func (r *restoreRepository) Create(ctx context.Context, restore *domain.BackupRestore) error {
	query := `
		INSERT INTO restore (` + restoreColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	errorsJSON, err := json.Marshal(emptyIfNilErrors(restore.Errors))
	if err != nil {
		return fmt.Errorf("failed to marshal restore errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		restore.ID,
		restore.RunID,
		restore.Type,
		restore.TargetPath,
		restore.Status,
		restore.RestoredFiles,
		restore.Sandbox,
		restore.StartedAt,
		nullTime(restore.CompletedAt),
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create restore: %w", err)
	}
	return nil
}

func (r *restoreRepository) FindByID(ctx context.Context, id string) (*domain.BackupRestore, error) {
	query := `SELECT ` + restoreColumns + ` FROM restore WHERE id = ?`
	restore, err := scanRestore(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("restore not found: %s", id)
	}
	return restore, err
}

func (r *restoreRepository) Update(ctx context.Context, restore *domain.BackupRestore) error {
	query := `
		UPDATE restore
		SET status = ?, restored_files = ?, completed_at = ?, errors = ?
		WHERE id = ?
	`

	errorsJSON, err := json.Marshal(emptyIfNilErrors(restore.Errors))
	if err != nil {
		return fmt.Errorf("failed to marshal restore errors: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		restore.Status,
		restore.RestoredFiles,
		nullTime(restore.CompletedAt),
		string(errorsJSON),
		restore.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update restore: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("restore not found: %s", restore.ID)
	}
	return nil
}

func (r *restoreRepository) List(ctx context.Context, filter repository.RestoreFilter) ([]*domain.BackupRestore, error) {
	query := `SELECT ` + restoreColumns + ` FROM restore WHERE 1=1`
	args := []interface{}{}

	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	// Sandbox (test) restores stay out of user-facing restore history.
	if !filter.IncludeSandbox {
		query += " AND sandbox = 0"
	}

	query, args = ApplyFilters(query, args, filter.Filters)
	query = ApplyOrdering(query, filter.Order, "started_at DESC")
	query, args = ApplyPagination(query, args, filter.Page, filter.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list restores: %w", err)
	}
	defer rows.Close()

	var restores []*domain.BackupRestore
	for rows.Next() {
		restore, err := scanRestore(rows)
		if err != nil {
			return nil, err
		}
		restores = append(restores, restore)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restores: %w", err)
	}
	return restores, nil
}

func (r *restoreRepository) Count(ctx context.Context, filter repository.RestoreFilter) (int, error) {
	query := `SELECT COUNT(*) FROM restore WHERE 1=1`
	args := []interface{}{}

	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	if !filter.IncludeSandbox {
		query += " AND sandbox = 0"
	}
	query, args = ApplyFilters(query, args, filter.Filters)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count restores: %w", err)
	}
	return count, nil
}

func scanRestore(row rowScanner) (*domain.BackupRestore, error) {
	var restore domain.BackupRestore
	var completedAt sql.NullTime
	var errorsJSON string

	err := row.Scan(
		&restore.ID,
		&restore.RunID,
		&restore.Type,
		&restore.TargetPath,
		&restore.Status,
		&restore.RestoredFiles,
		&restore.Sandbox,
		&restore.StartedAt,
		&completedAt,
		&errorsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan restore: %w", err)
	}

	if completedAt.Valid {
		restore.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(errorsJSON), &restore.Errors); err != nil {
		return nil, fmt.Errorf("failed to parse restore errors: %w", err)
	}

	return &restore, nil
}
