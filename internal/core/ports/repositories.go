package ports

import (
	"context"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// ViewRepository persists saved camera views.
type ViewRepository interface {
	Create(ctx context.Context, view *domain.SavedView) error
	GetByID(ctx context.Context, id string) (*domain.SavedView, error)
	List(ctx context.Context, limit, offset int) ([]domain.SavedView, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
