package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/uow"
)

// MaxDiscountPercent caps a redemption relative to the booking total.
const MaxDiscountPercent = 20

const defaultBasePoints = 50

var categoryBasePoints = map[string]int64{
	"Adventure":  100,
	"Beach":      80,
	"Cultural":   90,
	"Wildlife":   110,
	"Mountain":   120,
	"City Tour":  70,
	"Cruise":     150,
	"Religious":  60,
	"Historical": 85,
	"Nature":     95,
}

// BasePoints returns the completion bonus for a package category.
func BasePoints(category string) int64 {
	if p, ok := categoryBasePoints[category]; ok {
		return p
	}
	return defaultBasePoints
}

// PointsForCompletion is the category bonus plus one point per 100 major
// currency units of the final amount.
func PointsForCompletion(category string, finalCents int64) int64 {
	return BasePoints(category) + max(finalCents, 0)/domain.CentsPerPoint/100
}

// Quote returns how many of the requested points can be applied to a booking
// of totalCents. Unusable points are simply not redeemed.
func Quote(points, totalCents int64) int64 {
	capPoints := totalCents * MaxDiscountPercent / 100 / domain.CentsPerPoint
	return max(min(points, capPoints), 0)
}

// Redemption is the applied part of a points request.
type Redemption struct {
	Points        int64
	DiscountCents int64
}

type Config struct {
	HistoryLimit int
	Now          func() time.Time
}

type Service struct {
	uow    *uow.UoW
	logger *slog.Logger
	cfg    Config
}

func New(u *uow.UoW, logger *slog.Logger, cfg Config) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		uow:    u,
		logger: logger,
		cfg:    cfg,
	}
}

// Balance returns the customer's reward points.
//
// Returns:
//   - error: rewards.ErrCustomerNotFound if the customer does not exist.
func (s *Service) Balance(ctx context.Context, customerID int64) (int64, error) {
	const op = "service.rewards.Balance"

	balance, err := s.uow.Repos().Customers().PointsBalance(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return balance, nil
}

// History returns the newest ledger entries first.
func (s *Service) History(ctx context.Context, customerID int64, limit int) ([]domain.RewardPointsEntry, error) {
	const op = "service.rewards.History"

	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}

	entries, err := s.uow.Repos().Customers().Entries(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return entries, nil
}

// RedeemIn applies points to a booking inside the caller's transaction.
// Only the capped discount is debited.
//
// Parameters:
//   - r: repositories bound to the caller's transaction.
//   - points: points the customer asked to use.
//   - totalCents: booking total before discount.
//
// Returns:
//   - Redemption: the points debited and the matching discount.
//   - error: rewards.ErrInsufficientPoints if points exceed the balance.
//   - error: rewards.ErrCustomerNotFound if the customer does not exist.
func (s *Service) RedeemIn(
	ctx context.Context,
	r repository.Repos,
	customerID, points, totalCents int64,
	bookingID uuid.UUID,
) (Redemption, error) {
	const op = "service.rewards.RedeemIn"

	if points < 0 {
		return Redemption{}, fmt.Errorf("%s:%w", op, ErrInvalidPoints)
	}

	if points == 0 {
		return Redemption{}, nil
	}

	balance, err := r.Customers().PointsBalance(ctx, customerID)
	if err != nil {
		return Redemption{}, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	if points > balance {
		return Redemption{}, fmt.Errorf("%s:%w", op, ErrInsufficientPoints)
	}

	applied := Quote(points, totalCents)
	if applied == 0 {
		return Redemption{}, nil
	}

	if _, err := r.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{
		CustomerID: customerID,
		Amount:     -applied,
		Type:       domain.PointsUsed,
		BookingID:  &bookingID,
		Reason:     "redeemed for booking",
		CreatedAt:  s.cfg.Now().UTC(),
	}); err != nil {
		return Redemption{}, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return Redemption{Points: applied, DiscountCents: applied * domain.CentsPerPoint}, nil
}

// EarnIn credits completion points inside the caller's transaction.
//
// Returns:
//   - int64: the points credited.
//   - error: rewards.ErrCustomerNotFound if the customer does not exist.
func (s *Service) EarnIn(
	ctx context.Context,
	r repository.Repos,
	customerID int64,
	category string,
	finalCents int64,
	bookingID uuid.UUID,
) (int64, error) {
	const op = "service.rewards.EarnIn"

	earned := PointsForCompletion(category, finalCents)

	if _, err := r.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{
		CustomerID: customerID,
		Amount:     earned,
		Type:       domain.PointsEarned,
		BookingID:  &bookingID,
		Reason:     fmt.Sprintf("completed %s booking", category),
		CreatedAt:  s.cfg.Now().UTC(),
	}); err != nil {
		return 0, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return earned, nil
}

// RestoreIn credits back points that were redeemed on a cancelled booking.
func (s *Service) RestoreIn(ctx context.Context, r repository.Repos, customerID, points int64, bookingID uuid.UUID) error {
	const op = "service.rewards.RestoreIn"

	if points <= 0 {
		return nil
	}

	if _, err := r.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{
		CustomerID: customerID,
		Amount:     points,
		Type:       domain.PointsEarned,
		BookingID:  &bookingID,
		Reason:     "points restored for cancelled booking",
		CreatedAt:  s.cfg.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("%s:%w", op, mapErr(err))
	}

	s.logger.InfoContext(ctx, "reward points restored",
		slog.Int64("customer_id", customerID),
		slog.Int64("points", points),
		slog.String("booking_id", bookingID.String()),
	)

	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientPoints
	}
	return err
}
