package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

type testRepository struct {
	db *DB
}

func NewTestRepository(db *DB) repository.TestRepository {
	return &testRepository{db: db}
}

const testColumns = `id, run_id, type, status, started_at, completed_at, results, failures`

func (r *testRepository) Create(ctx context.Context, test *domain.BackupTest) error {
	query := `
		INSERT INTO test (` + testColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	resultsJSON, failuresJSON, err := marshalTestLists(test)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		test.ID,
		test.RunID,
		test.Type,
		test.Status,
		test.StartedAt,
		nullTime(test.CompletedAt),
		resultsJSON,
		failuresJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

func (r *testRepository) FindByID(ctx context.Context, id string) (*domain.BackupTest, error) {
	query := `SELECT ` + testColumns + ` FROM test WHERE id = ?`
	test, err := scanTest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test not found: %s", id)
	}
	return test, err
}

func (r *testRepository) Update(ctx context.Context, test *domain.BackupTest) error {
	query := `
		UPDATE test
		SET status = ?, completed_at = ?, results = ?, failures = ?
		WHERE id = ?
	`

	resultsJSON, failuresJSON, err := marshalTestLists(test)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		test.Status,
		nullTime(test.CompletedAt),
		resultsJSON,
		failuresJSON,
		test.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("test not found: %s", test.ID)
	}
	return nil
}

func (r *testRepository) List(ctx context.Context, filter repository.TestFilter) ([]*domain.BackupTest, error) {
	query := `SELECT ` + testColumns + ` FROM test WHERE 1=1`
	args := []interface{}{}

	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}

	query, args = ApplyFilters(query, args, filter.Filters)
	query = ApplyOrdering(query, filter.Order, "started_at DESC")
	query, args = ApplyPagination(query, args, filter.Page, filter.PerPage)

	return r.queryTests(ctx, query, args...)
}

func (r *testRepository) Count(ctx context.Context, filter repository.TestFilter) (int, error) {
	query := `SELECT COUNT(*) FROM test WHERE 1=1`
	args := []interface{}{}

	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}
	query, args = ApplyFilters(query, args, filter.Filters)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tests: %w", err)
	}
	return count, nil
}

func (r *testRepository) FindByRun(ctx context.Context, runID string) ([]*domain.BackupTest, error) {
	query := `SELECT ` + testColumns + ` FROM test WHERE run_id = ? ORDER BY started_at ASC`
	return r.queryTests(ctx, query, runID)
}

func (r *testRepository) queryTests(ctx context.Context, query string, args ...interface{}) ([]*domain.BackupTest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tests: %w", err)
	}
	defer rows.Close()

	var tests []*domain.BackupTest
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tests: %w", err)
	}
	return tests, nil
}

func marshalTestLists(test *domain.BackupTest) (string, string, error) {
	results := test.Results
	if results == nil {
		results = []domain.TestResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal test results: %w", err)
	}
	failures := test.Failures
	if failures == nil {
		failures = []domain.TestFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal test failures: %w", err)
	}
	return string(resultsJSON), string(failuresJSON), nil
}

func scanTest(row rowScanner) (*domain.BackupTest, error) {
	var test domain.BackupTest
	var completedAt sql.NullTime
	var resultsJSON, failuresJSON string

	err := row.Scan(
		&test.ID,
		&test.RunID,
		&test.Type,
		&test.Status,
		&test.StartedAt,
		&completedAt,
		&resultsJSON,
		&failuresJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan test: %w", err)
	}

	if completedAt.Valid {
		test.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(resultsJSON), &test.Results); err != nil {
		return nil, fmt.Errorf("failed to parse test results: %w", err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &test.Failures); err != nil {
		return nil, fmt.Errorf("failed to parse test failures: %w", err)
	}

	return &test, nil
}
