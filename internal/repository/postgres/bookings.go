package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/samber/lo"
)

const bookingColumns = `id, customer_id, package_id, type, group_departure_id,
	start_date, end_date, num_travelers, travelers, notes,
	total_cents, discount_cents, final_cents, points_used, points_earned,
	currency, status, cancellation, date_change_request, reserved_seats,
	created_at, updated_at`

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts the booking and its initial payments.
//
// Returns:
//   - error: repository.ErrConflict if a booking with the same ID exists.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	db := r.handle()

	travelers, cancellation, dateChange, err := marshalBookingDocs(b)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(`+bookingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		         $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		b.ID, b.CustomerID, b.PackageID, string(b.Type), b.GroupDepartureID,
		b.StartDate, b.EndDate, b.NumTravelers, travelers, b.Notes,
		b.TotalCents, b.DiscountCents, b.FinalCents, b.PointsUsed, b.PointsEarned,
		b.Currency, string(b.Status), cancellation, dateChange, nonNilSeats(b.ReservedSeats),
		b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	if err := r.insertPayments(ctx, db, b.ID, b.Payments); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a booking with its payments.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.get(ctx, "postgres.BookingRepo.Get", id, "")
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.get(ctx, "postgres.BookingRepo.GetForUpdate", id, " FOR UPDATE")
}

func (r *BookingRepo) get(ctx context.Context, op string, id uuid.UUID, lock string) (*domain.Booking, error) {
	db := r.handle()

	b, err := scanBooking(db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`+lock,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if err := r.attachPayments(ctx, db, []*domain.Booking{b}); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// Save updates the mutable booking columns and appends payments that are
// not stored yet.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Save(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Save"

	db := r.handle()

	travelers, cancellation, dateChange, err := marshalBookingDocs(b)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := db.Exec(ctx,
		`UPDATE bookings
		 SET start_date = $2, end_date = $3, travelers = $4, notes = $5,
		     discount_cents = $6, final_cents = $7, points_used = $8, points_earned = $9,
		     status = $10, cancellation = $11, date_change_request = $12,
		     reserved_seats = $13, updated_at = $14
		 WHERE id = $1`,
		b.ID, b.StartDate, b.EndDate, travelers, b.Notes,
		b.DiscountCents, b.FinalCents, b.PointsUsed, b.PointsEarned,
		string(b.Status), cancellation, dateChange,
		nonNilSeats(b.ReservedSeats), b.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	if err := r.insertPayments(ctx, db, b.ID, b.Payments); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// List returns bookings matching the filter, newest first.
func (r *BookingRepo) List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.List"

	db := r.handle()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.PackageID != nil {
		add("package_id = $%d", *f.PackageID)
	}
	if f.GroupDepartureID != nil {
		add("group_departure_id = $%d", *f.GroupDepartureID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", lo.Map(f.Statuses, func(s domain.BookingStatus, _ int) string {
			return string(s)
		}))
	}
	if f.Type != nil {
		add("type = $%d", string(*f.Type))
	}
	if f.StartFrom != nil {
		add("start_date >= $%d", *f.StartFrom)
	}
	if f.StartTo != nil {
		add("start_date <= $%d", *f.StartTo)
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.query(ctx, db, op, q, args...)
}

func (r *BookingRepo) ListStartedLive(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListStartedLive"

	return r.query(ctx, r.handle(), op,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status IN ('PENDING', 'CONFIRMED') AND start_date <= $1
		 ORDER BY start_date, id`,
		now,
	)
}

func (r *BookingRepo) HeldSeats(ctx context.Context, departureID int64) ([]string, error) {
	const op = "postgres.BookingRepo.HeldSeats"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT reserved_seats
		 FROM bookings
		 WHERE group_departure_id = $1 AND status IN ('PENDING', 'CONFIRMED')`,
		departureID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var held []string
	for rows.Next() {
		var seats []string
		if err := rows.Scan(&seats); err != nil {
			return nil, wrapDBErr(op, err)
		}
		held = append(held, seats...)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return held, nil
}

func (r *BookingRepo) query(ctx context.Context, db DB, op, q string, args ...any) ([]domain.Booking, error) {
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	var list []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, wrapDBErr(op, err)
		}
		list = append(list, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if err := r.attachPayments(ctx, db, list); err != nil {
		return nil, wrapDBErr(op, err)
	}

	out := make([]domain.Booking, 0, len(list))
	for _, b := range list {
		out = append(out, *b)
	}

	return out, nil
}

func (r *BookingRepo) insertPayments(ctx context.Context, db DB, bookingID uuid.UUID, payments []domain.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range payments {
		batch.Queue(
			`INSERT INTO booking_payments(id, booking_id, amount_cents, method, status, transaction_ref, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, bookingID, p.AmountCents, string(p.Method), string(p.Status), p.TransactionRef, p.CreatedAt,
		)
	}

	return db.SendBatch(ctx, batch).Close()
}

func (r *BookingRepo) attachPayments(ctx context.Context, db DB, list []*domain.Booking) error {
	if len(list) == 0 {
		return nil
	}

	byID := lo.KeyBy(list, func(b *domain.Booking) uuid.UUID { return b.ID })

	rows, err := db.Query(ctx,
		`SELECT id, booking_id, amount_cents, method, status, transaction_ref, created_at
		 FROM booking_payments
		 WHERE booking_id = ANY($1)
		 ORDER BY created_at, id`,
		lo.Keys(byID),
	)
	if err != nil {
		return err
	}

	defer rows.Close()

	for rows.Next() {
		var (
			p              domain.Payment
			bookingID      uuid.UUID
			method, status string
		)
		if err := rows.Scan(&p.ID, &bookingID, &p.AmountCents, &method, &status, &p.TransactionRef, &p.CreatedAt); err != nil {
			return err
		}
		p.Method = domain.PaymentMethod(method)
		p.Status = domain.PaymentStatus(status)
		if b, ok := byID[bookingID]; ok {
			b.Payments = append(b.Payments, p)
		}
	}

	return rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var typ, status string
	var travelers, cancellation, dateChange []byte

	if err := row.Scan(
		&b.ID, &b.CustomerID, &b.PackageID, &typ, &b.GroupDepartureID,
		&b.StartDate, &b.EndDate, &b.NumTravelers, &travelers, &b.Notes,
		&b.TotalCents, &b.DiscountCents, &b.FinalCents, &b.PointsUsed, &b.PointsEarned,
		&b.Currency, &status, &cancellation, &dateChange, &b.ReservedSeats,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.Type = domain.BookingType(typ)
	b.Status = domain.BookingStatus(status)

	if err := json.Unmarshal(travelers, &b.Travelers); err != nil {
		return nil, fmt.Errorf("decode travelers: %w", err)
	}
	if len(cancellation) > 0 {
		b.Cancellation = &domain.CancellationRecord{}
		if err := json.Unmarshal(cancellation, b.Cancellation); err != nil {
			return nil, fmt.Errorf("decode cancellation: %w", err)
		}
	}
	if len(dateChange) > 0 {
		b.DateChangeRequest = &domain.DateChangeRequest{}
		if err := json.Unmarshal(dateChange, b.DateChangeRequest); err != nil {
			return nil, fmt.Errorf("decode date change request: %w", err)
		}
	}

	return &b, nil
}

func marshalBookingDocs(b *domain.Booking) (travelers, cancellation, dateChange []byte, err error) {
	if travelers, err = json.Marshal(b.Travelers); err != nil {
		return nil, nil, nil, err
	}
	if b.Cancellation != nil {
		if cancellation, err = json.Marshal(b.Cancellation); err != nil {
			return nil, nil, nil, err
		}
	}
	if b.DateChangeRequest != nil {
		if dateChange, err = json.Marshal(b.DateChangeRequest); err != nil {
			return nil, nil, nil, err
		}
	}
	return travelers, cancellation, dateChange, nil
}

func nonNilSeats(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
