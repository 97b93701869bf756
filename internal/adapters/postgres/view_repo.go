package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// ViewRepo implements ports.ViewRepository.
type ViewRepo struct {
	db *DB
}

func NewViewRepo(db *DB) *ViewRepo {
	return &ViewRepo{db: db}
}

func (r *ViewRepo) Create(ctx context.Context, v *domain.SavedView) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO saved_views (id, name, lng, lat, zoom, bearing, pitch)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, v.ID, v.Name, v.Center.Lng, v.Center.Lat, v.Zoom, v.Bearing, v.Pitch).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

func (r *ViewRepo) GetByID(ctx context.Context, id string) (*domain.SavedView, error) {
	v := &domain.SavedView{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, lng, lat, zoom, bearing, pitch, created_at
		FROM saved_views WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Center.Lng, &v.Center.Lat, &v.Zoom, &v.Bearing, &v.Pitch, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrViewNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *ViewRepo) List(ctx context.Context, limit, offset int) ([]domain.SavedView, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, lng, lat, zoom, bearing, pitch, created_at
		FROM saved_views ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.SavedView
	for rows.Next() {
		var v domain.SavedView
		if err := rows.Scan(&v.ID, &v.Name, &v.Center.Lng, &v.Center.Lat, &v.Zoom, &v.Bearing, &v.Pitch, &v.CreatedAt); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Count returns the number of saved views.
func (r *ViewRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM saved_views`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count views: %w", err)
	}
	return n, nil
}

func (r *ViewRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM saved_views WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrViewNotFound
	}
	return nil
}
