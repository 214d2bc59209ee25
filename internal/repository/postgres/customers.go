package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
)

type CustomerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CustomerRepo) With(db DB) *CustomerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CustomerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	const op = "postgres.CustomerRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO customers(name, email, reward_points)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Name, c.Email, c.RewardPoints,
	).Scan(&c.ID, &c.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// PointsBalance returns the customer's current reward points.
//
// Returns:
//   - error: repository.ErrNotFound if the customer does not exist.
func (r *CustomerRepo) PointsBalance(ctx context.Context, customerID int64) (int64, error) {
	const op = "postgres.CustomerRepo.PointsBalance"

	var balance int64
	if err := r.handle().QueryRow(ctx,
		`SELECT reward_points FROM customers WHERE id = $1`,
		customerID,
	).Scan(&balance); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return balance, nil
}

// AdjustPoints applies a signed points movement guarded against a negative
// balance and appends the ledger entry.
//
// Returns:
//   - int64: the balance after the movement.
//   - error: repository.ErrInsufficientBalance if a debit exceeds the balance.
//   - error: repository.ErrNotFound if the customer does not exist.
func (r *CustomerRepo) AdjustPoints(ctx context.Context, e domain.RewardPointsEntry) (int64, error) {
	const op = "postgres.CustomerRepo.AdjustPoints"

	db := r.handle()

	var balance int64
	err := db.QueryRow(ctx,
		`UPDATE customers
		 SET reward_points = reward_points + $2
		 WHERE id = $1 AND reward_points + $2 >= 0
		 RETURNING reward_points`,
		e.CustomerID, e.Amount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.PointsBalance(ctx, e.CustomerID); err != nil {
			return 0, fmt.Errorf("%s:%w", op, err)
		}
		return 0, fmt.Errorf("%s:%w", op, repository.ErrInsufficientBalance)
	}
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO reward_points_entries(customer_id, amount, type, booking_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.CustomerID, e.Amount, string(e.Type), e.BookingID, e.Reason, e.CreatedAt,
	); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return balance, nil
}

func (r *CustomerRepo) Entries(ctx context.Context, customerID int64, limit int) ([]domain.RewardPointsEntry, error) {
	const op = "postgres.CustomerRepo.Entries"

	rows, err := r.handle().Query(ctx,
		`SELECT id, customer_id, amount, type, booking_id, reason, created_at
		 FROM reward_points_entries
		 WHERE customer_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.RewardPointsEntry
	for rows.Next() {
		var e domain.RewardPointsEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Amount, &typ, &e.BookingID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		e.Type = domain.PointsEntryType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
