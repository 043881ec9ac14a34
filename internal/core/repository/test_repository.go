package repository

import (
	"context"

	"github.com/rowan/backstop/internal/api/util"
	"github.com/rowan/backstop/internal/core/domain"
)

type TestFilter struct {
	util.ListFilter
	RunID *string
	Type  *domain.TestType
}

type TestRepository interface {
	Create(ctx context.Context, test *domain.BackupTest) error
	FindByID(ctx context.Context, id string) (*domain.BackupTest, error)
	Update(ctx context.Context, test *domain.BackupTest) error
	List(ctx context.Context, filter TestFilter) ([]*domain.BackupTest, error)
	Count(ctx context.Context, filter TestFilter) (int, error)
	FindByRun(ctx context.Context, runID string) ([]*domain.BackupTest, error)
}
