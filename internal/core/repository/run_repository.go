package repository

import (
	"context"

	"github.com/rowan/backstop/internal/api/util"
	"github.com/rowan/backstop/internal/core/domain"
)

// RunFilter embeds ListFilter for generic query/order/pagination
type RunFilter struct {
	util.ListFilter
	JobID  *string
	Status *domain.RunStatus
}

type RunRepository interface {
	Create(ctx context.Context, run *domain.BackupRun) error
	FindByID(ctx context.Context, id string) (*domain.BackupRun, error)
	Update(ctx context.Context, run *domain.BackupRun) error
	List(ctx context.Context, filter RunFilter) ([]*domain.BackupRun, error)
	Count(ctx context.Context, filter RunFilter) (int, error)

	// Completed and failed runs for a job, oldest first, for retention sweeps
	FindByJob(ctx context.Context, jobID string) ([]*domain.BackupRun, error)
	DeleteMany(ctx context.Context, ids []string) error

	// Runs carrying at least one failed or errored integrity check
	FindWithIntegrityIssues(ctx context.Context) ([]*domain.BackupRun, error)

	CreateCheck(ctx context.Context, check *domain.IntegrityCheck) error
	FindChecksByRun(ctx context.Context, runID string) ([]domain.IntegrityCheck, error)
}
