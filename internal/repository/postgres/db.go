package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

var _ repository.TxRunner = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn inside a serializable read-write transaction with every
// repository bound to it.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	return s.RunTxWithOpts(ctx, nil, fn)
}

func (s *Store) RunTxWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, r repository.Repos) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, s.bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Bookings() repository.Bookings     { return &BookingRepo{pool: s.pool} }
func (s *Store) Departures() repository.Departures { return &DepartureRepo{pool: s.pool} }
func (s *Store) Packages() repository.Packages     { return &PackageRepo{pool: s.pool} }
func (s *Store) Customers() repository.Customers   { return &CustomerRepo{pool: s.pool} }

type txRepos struct {
	bookings   *BookingRepo
	departures *DepartureRepo
	packages   *PackageRepo
	customers  *CustomerRepo
}

func (s *Store) bind(tx DB) *txRepos {
	return &txRepos{
		bookings:   (&BookingRepo{pool: s.pool}).With(tx),
		departures: (&DepartureRepo{pool: s.pool}).With(tx),
		packages:   (&PackageRepo{pool: s.pool}).With(tx),
		customers:  (&CustomerRepo{pool: s.pool}).With(tx),
	}
}

func (t *txRepos) Bookings() repository.Bookings     { return t.bookings }
func (t *txRepos) Departures() repository.Departures { return t.departures }
func (t *txRepos) Packages() repository.Packages     { return t.packages }
func (t *txRepos) Customers() repository.Customers   { return t.customers }
