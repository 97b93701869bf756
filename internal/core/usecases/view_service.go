package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

// ViewService handles saved views.
type ViewService struct {
	views ports.ViewRepository
	cache ports.CacheService
}

// NewViewService creates a new ViewService.
func NewViewService(views ports.ViewRepository, cache ports.CacheService) *ViewService {
	return &ViewService{views: views, cache: cache}
}

// Save stores a new view and fills in its ID.
func (s *ViewService) Save(ctx context.Context, view *domain.SavedView) error {
	view.Name = strings.TrimSpace(view.Name)
	if view.Name == "" {
		return fmt.Errorf("view name must not be empty")
	}
	if err := view.Center.Validate(); err != nil {
		return err
	}
	if view.ID == "" {
		view.ID = uuid.NewString()
	}
	return s.views.Create(ctx, view)
}

// SaveFromSession stores the current camera of a live session as a view.
func (s *ViewService) SaveFromSession(ctx context.Context, cameras *CameraService, sessionID, name string) (*domain.SavedView, error) {
	st, err := cameras.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view := &domain.SavedView{
		Name:    name,
		Center:  st.Center,
		Zoom:    st.Zoom,
		Bearing: st.Bearing,
		Pitch:   st.Pitch,
	}
	if err := s.Save(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

// GetByID returns a single view.
func (s *ViewService) GetByID(ctx context.Context, id string) (*domain.SavedView, error) {
	cacheKey := "views:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var view domain.SavedView
			if err := json.Unmarshal(data, &view); err == nil {
				metrics.CacheHits.WithLabelValues("view").Inc()
				return &view, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("view").Inc()
	}

	view, err := s.views.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // views never change
		}
	}
	return view, nil
}

// List returns a page of views, newest first, and the total number of views.
func (s *ViewService) List(ctx context.Context, limit, offset int) ([]domain.SavedView, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	views, err := s.views.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.views.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Delete removes a view.
func (s *ViewService) Delete(ctx context.Context, id string) error {
	if err := s.views.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "views:id:"+id)
	}
	return nil
}
