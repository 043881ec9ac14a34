package repository

import (
	"context"

	"github.com/rowan/backstop/internal/api/util"
	"github.com/rowan/backstop/internal/core/domain"
)

// RestoreFilter embeds ListFilter for generic query/order/pagination.
// IncludeSandbox widens history queries to test restores, which are hidden
// by default.
type RestoreFilter struct {
	util.ListFilter
	RunID          *string
	IncludeSandbox bool
}

type RestoreRepository interface {
	Create(ctx context.Context, restore *domain.BackupRestore) error
	FindByID(ctx context.Context, id string) (*domain.BackupRestore, error)
	Update(ctx context.Context, restore *domain.BackupRestore) error
	List(ctx context.Context, filter RestoreFilter) ([]*domain.BackupRestore, error)
	Count(ctx context.Context, filter RestoreFilter) (int, error)
}
