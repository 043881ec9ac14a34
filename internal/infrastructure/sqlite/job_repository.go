package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

type jobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) repository.JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = `id, name, type, source, destination, schedule, retention, encryption, compression,
	status, labels, schedule_enabled, last_run_at, next_run_at, created_at, updated_at`

func (r *jobRepository) Create(ctx context.Context, job *domain.BackupJob) error {
	query := `
		INSERT INTO job (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cfg, err := marshalJobConfigs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Name,
		job.Type,
		cfg.source,
		cfg.destination,
		cfg.schedule,
		cfg.retention,
		cfg.encryption,
		cfg.compression,
		job.Status,
		cfg.labels,
		job.Schedule.Enabled,
		nullTime(job.LastRunAt),
		nullTime(job.NextRunAt),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) FindByID(ctx context.Context, id string) (*domain.BackupJob, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE id = ?`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job, err
}

func (r *jobRepository) Update(ctx context.Context, job *domain.BackupJob) error {
	query := `
		UPDATE job
		SET name = ?, type = ?, source = ?, destination = ?, schedule = ?, retention = ?,
		    encryption = ?, compression = ?, status = ?, labels = ?, schedule_enabled = ?,
		    last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?
	`

	cfg, err := marshalJobConfigs(job)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		job.Name,
		job.Type,
		cfg.source,
		cfg.destination,
		cfg.schedule,
		cfg.retention,
		cfg.encryption,
		cfg.compression,
		job.Status,
		cfg.labels,
		job.Schedule.Enabled,
		nullTime(job.LastRunAt),
		nullTime(job.NextRunAt),
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}
	return nil
}

func (r *jobRepository) List(ctx context.Context, filter repository.JobFilter) ([]*domain.BackupJob, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.BackupJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) Count(ctx context.Context, filter repository.JobFilter) (int, error) {
	query := `SELECT COUNT(*) FROM job WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, *filter.Type)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

func (r *jobRepository) FindDue(ctx context.Context, now time.Time) ([]*domain.BackupJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM job
		WHERE status = ? AND schedule_enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, domain.JobStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.BackupJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due jobs: %w", err)
	}
	return jobs, nil
}

type jobConfigJSON struct {
	source      string
	destination string
	schedule    string
	retention   string
	encryption  string
	compression string
	labels      sql.NullString
}

func marshalJobConfigs(job *domain.BackupJob) (*jobConfigJSON, error) {
	var cfg jobConfigJSON
	for _, part := range []struct {
		name string
		v    interface{}
		dst  *string
	}{
		{"source", job.Source, &cfg.source},
		{"destination", job.Destination, &cfg.destination},
		{"schedule", job.Schedule, &cfg.schedule},
		{"retention", job.Retention, &cfg.retention},
		{"encryption", job.Encryption, &cfg.encryption},
		{"compression", job.Compression, &cfg.compression},
	} {
		data, err := json.Marshal(part.v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job %s: %w", part.name, err)
		}
		*part.dst = string(data)
	}
	if len(job.Labels) > 0 {
		data, err := json.Marshal(job.Labels)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job labels: %w", err)
		}
		cfg.labels = sql.NullString{String: string(data), Valid: true}
	}
	return &cfg, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.BackupJob, error) {
	var job domain.BackupJob
	var source, destination, schedule, retention, encryption, compression string
	var labels sql.NullString
	var scheduleEnabled bool
	var lastRunAt, nextRunAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Type,
		&source,
		&destination,
		&schedule,
		&retention,
		&encryption,
		&compression,
		&job.Status,
		&labels,
		&scheduleEnabled,
		&lastRunAt,
		&nextRunAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	for _, part := range []struct {
		name string
		data string
		dst  interface{}
	}{
		{"source", source, &job.Source},
		{"destination", destination, &job.Destination},
		{"schedule", schedule, &job.Schedule},
		{"retention", retention, &job.Retention},
		{"encryption", encryption, &job.Encryption},
		{"compression", compression, &job.Compression},
	} {
		if err := json.Unmarshal([]byte(part.data), part.dst); err != nil {
			return nil, fmt.Errorf("failed to parse job %s: %w", part.name, err)
		}
	}
	if labels.Valid {
		if err := json.Unmarshal([]byte(labels.String), &job.Labels); err != nil {
			return nil, fmt.Errorf("failed to parse job labels: %w", err)
		}
	}
	if lastRunAt.Valid {
		job.LastRunAt = &lastRunAt.Time
	}
	if nextRunAt.Valid {
		job.NextRunAt = &nextRunAt.Time
	}

	return &job, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
