package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
)

const departureColumns = `id, package_id, start_date, end_date, total_seats, booked_seats,
	price_per_person_cents, currency, status, operators, itinerary, seat_map,
	created_at, updated_at`

type DepartureRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DepartureRepo) With(db DB) *DepartureRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DepartureRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *DepartureRepo) Create(ctx context.Context, d *domain.GroupDeparture) error {
	const op = "postgres.DepartureRepo.Create"

	db := r.handle()

	seatMap, err := marshalSeatMap(d.SeatMap)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO group_departures(package_id, start_date, end_date, total_seats, booked_seats,
		     price_per_person_cents, currency, status, operators, itinerary, seat_map, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 RETURNING id`,
		d.PackageID, d.StartDate, d.EndDate, d.TotalSeats, d.BookedSeats,
		d.PricePerPersonCents, d.Currency, string(d.Status), d.Operators, nonNilSeats(d.Itinerary), seatMap,
		d.CreatedAt,
	).Scan(&d.ID); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a departure by ID.
//
// Returns:
//   - error: repository.ErrNotFound if the departure does not exist.
func (r *DepartureRepo) Get(ctx context.Context, id int64) (*domain.GroupDeparture, error) {
	const op = "postgres.DepartureRepo.Get"

	d, err := scanDeparture(r.handle().QueryRow(ctx,
		`SELECT `+departureColumns+` FROM group_departures WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// GetForUpdate locks the departure row. Every seat-affecting path takes this
// lock first, so the held-seat read and the increment are serialized per departure.
func (r *DepartureRepo) GetForUpdate(ctx context.Context, id int64) (*domain.GroupDeparture, error) {
	const op = "postgres.DepartureRepo.GetForUpdate"

	d, err := scanDeparture(r.handle().QueryRow(ctx,
		`SELECT `+departureColumns+` FROM group_departures WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// IncrementBooked reserves n seats with one guarded update.
//
// Returns:
//   - *domain.GroupDeparture: the departure after the increment.
//   - error: repository.ErrCapacityExceeded if the departure is not OPEN or lacks headroom.
func (r *DepartureRepo) IncrementBooked(ctx context.Context, id int64, n int) (*domain.GroupDeparture, error) {
	const op = "postgres.DepartureRepo.IncrementBooked"

	d, err := scanDeparture(r.handle().QueryRow(ctx,
		`UPDATE group_departures
		 SET booked_seats = booked_seats + $2,
		     status = CASE WHEN booked_seats + $2 >= total_seats THEN 'FULL' ELSE status END,
		     updated_at = now()
		 WHERE id = $1
		   AND status = 'OPEN'
		   AND booked_seats + $2 <= total_seats
		 RETURNING `+departureColumns,
		id, n,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrCapacityExceeded)
		}
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// DecrementBooked releases n seats. The floor and the FULL to OPEN reopen are
// evaluated in the same statement as the decrement.
func (r *DepartureRepo) DecrementBooked(ctx context.Context, id int64, n int) (*domain.GroupDeparture, error) {
	const op = "postgres.DepartureRepo.DecrementBooked"

	d, err := scanDeparture(r.handle().QueryRow(ctx,
		`UPDATE group_departures
		 SET booked_seats = GREATEST(booked_seats - $2, 0),
		     status = CASE
		         WHEN status = 'FULL' AND GREATEST(booked_seats - $2, 0) < total_seats THEN 'OPEN'
		         ELSE status
		     END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+departureColumns,
		id, n,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

func (r *DepartureRepo) SetSeatStates(ctx context.Context, id int64, seatIDs []string, state domain.SeatState) error {
	const op = "postgres.DepartureRepo.SetSeatStates"

	if len(seatIDs) == 0 {
		return nil
	}

	if _, err := r.handle().Exec(ctx,
		`UPDATE group_departures
		 SET seat_map = seat_map || (SELECT jsonb_object_agg(s, $3::text) FROM unnest($2::text[]) AS s),
		     updated_at = now()
		 WHERE id = $1 AND seat_map IS NOT NULL`,
		id, seatIDs, string(state),
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// SetStatus overrides the departure status.
//
// Returns:
//   - error: repository.ErrNotFound if the departure does not exist.
func (r *DepartureRepo) SetStatus(ctx context.Context, id int64, status domain.DepartureStatus) (*domain.GroupDeparture, error) {
	const op = "postgres.DepartureRepo.SetStatus"

	d, err := scanDeparture(r.handle().QueryRow(ctx,
		`UPDATE group_departures
		 SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+departureColumns,
		id, string(status),
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return d, nil
}

// Update writes every mutable column of d. booked_seats is left to the
// guarded increment and decrement paths.
func (r *DepartureRepo) Update(ctx context.Context, d *domain.GroupDeparture) error {
	const op = "postgres.DepartureRepo.Update"

	seatMap, err := marshalSeatMap(d.SeatMap)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := r.handle().Exec(ctx,
		`UPDATE group_departures
		 SET start_date = $2, end_date = $3, total_seats = $4, price_per_person_cents = $5,
		     status = $6, operators = $7, itinerary = $8, seat_map = $9, updated_at = $10
		 WHERE id = $1`,
		d.ID, d.StartDate, d.EndDate, d.TotalSeats, d.PricePerPersonCents,
		string(d.Status), d.Operators, nonNilSeats(d.Itinerary), seatMap, d.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func scanDeparture(row pgx.Row) (*domain.GroupDeparture, error) {
	var d domain.GroupDeparture
	var status string
	var seatMap []byte

	if err := row.Scan(
		&d.ID, &d.PackageID, &d.StartDate, &d.EndDate, &d.TotalSeats, &d.BookedSeats,
		&d.PricePerPersonCents, &d.Currency, &status, &d.Operators, &d.Itinerary, &seatMap,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.Status = domain.DepartureStatus(status)

	if len(seatMap) > 0 {
		if err := json.Unmarshal(seatMap, &d.SeatMap); err != nil {
			return nil, fmt.Errorf("decode seat map: %w", err)
		}
	}

	return &d, nil
}

func marshalSeatMap(m map[string]domain.SeatState) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
