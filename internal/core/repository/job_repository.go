package repository

import (
	"context"
	"time"

	"github.com/rowan/backstop/internal/core/domain"
)

type JobFilter struct {
	Status *domain.JobStatus
	Type   *domain.BackupType
	Limit  int
	Offset int
}

type JobRepository interface {
	Create(ctx context.Context, job *domain.BackupJob) error
	FindByID(ctx context.Context, id string) (*domain.BackupJob, error)
	Update(ctx context.Context, job *domain.BackupJob) error
	List(ctx context.Context, filter JobFilter) ([]*domain.BackupJob, error)
	Count(ctx context.Context, filter JobFilter) (int, error)

	// Find active jobs with an enabled schedule whose next run is due
	FindDue(ctx context.Context, now time.Time) ([]*domain.BackupJob, error)
}
