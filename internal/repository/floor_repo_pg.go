package repository

import (
	"context"

	"github.com/Domenick1991/parking/internal/domain"
)

type FloorRepository interface {
	Create(ctx context.Context, floor *domain.Floor) error
	GetByID(ctx context.Context, id int64) (*domain.Floor, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

type PGFloorRepository struct {
	db DBTX
}

func NewFloorRepository(db DBTX) FloorRepository {
	return &PGFloorRepository{db: db}
}

func (r *PGFloorRepository) Create(ctx context.Context, floor *domain.Floor) error {
	err := r.db.QueryRow(ctx, `INSERT INTO floors (name) VALUES ($1) RETURNING id, created_at`, floor.Name).
		Scan(&floor.ID, &floor.CreatedAt)
	return translate(err, "insert floor")
}

func (r *PGFloorRepository) GetByID(ctx context.Context, id int64) (*domain.Floor, error) {
	var f domain.Floor
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM floors WHERE id=$1`, id).
		Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		return nil, translate(err, "select floor")
	}
	return &f, nil
}

func (r *PGFloorRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM floors WHERE name=$1)`, name).Scan(&exists)
	return exists, translate(err, "check floor name")
}

var _ FloorRepository = (*PGFloorRepository)(nil)
