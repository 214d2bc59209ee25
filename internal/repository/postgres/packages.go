package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/domain"
)

type PackageRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PackageRepo) With(db DB) *PackageRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PackageRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *PackageRepo) Create(ctx context.Context, p *domain.Package) error {
	const op = "postgres.PackageRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO packages(name, category, default_days, base_price_cents, currency, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Name, p.Category, p.DefaultDays, p.BasePriceCents, p.Currency, p.IsActive,
	).Scan(&p.ID); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a package by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the package does not exist.
func (r *PackageRepo) Get(ctx context.Context, id int64) (*domain.Package, error) {
	const op = "postgres.PackageRepo.Get"

	var p domain.Package
	if err := r.handle().QueryRow(ctx,
		`SELECT id, name, category, default_days, base_price_cents, currency, is_active
		 FROM packages
		 WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Category, &p.DefaultDays, &p.BasePriceCents, &p.Currency, &p.IsActive); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}
