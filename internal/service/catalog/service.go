package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
)

var (
	ErrPackageNotFound   = fmt.Errorf("package not found: %w", domain.ErrNotFound)
	ErrDepartureNotFound = fmt.Errorf("departure not found: %w", domain.ErrNotFound)
)

type Config struct {
	PackageTTL      time.Duration
	DepartureTTL    time.Duration
	AvailabilityTTL time.Duration
}

// Service is the read side for packages and departures. Reads go through the
// cache; writers invalidate it after commit.
type Service struct {
	repos repository.Repos
	cache *redisrepo.Cache
	cfg   Config
}

func New(repos repository.Repos, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.PackageTTL <= 0 {
		cfg.PackageTTL = 5 * time.Minute
	}

	if cfg.DepartureTTL <= 0 {
		cfg.DepartureTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		repos: repos,
		cache: cache,
		cfg:   cfg,
	}
}

// GetPackage retrieves a package by its ID, utilizing a caching layer to improve performance.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the package to retrieve.
//
// Returns:
//   - *domain.Package: the retrieved package.
//   - error: catalog.ErrPackageNotFound if the package is not found.
func (s *Service) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	const op = "service.catalog.GetPackage"

	pkg, err := redisrepo.ReadThrough(
		ctx,
		s.cache,
		redisrepo.KeyPackage(id),
		s.cfg.PackageTTL,
		func(ctx context.Context) (domain.Package, error) {
			p, err := s.repos.Packages().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Package{}, ErrPackageNotFound
				}

				return domain.Package{}, err
			}

			return *p, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &pkg, nil
}

// CreatePackage stores a catalog entry. Packages are owned by the catalog
// system; this exists for seeding and admin tooling.
func (s *Service) CreatePackage(ctx context.Context, p *domain.Package) error {
	const op = "service.catalog.CreatePackage"

	if p.Name == "" || p.Category == "" || p.DefaultDays <= 0 {
		return fmt.Errorf("%s: name, category and positive default days required: %w", op, domain.ErrValidation)
	}

	if p.Currency == "" {
		p.Currency = "BDT"
	}

	if err := s.repos.Packages().Create(ctx, p); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_ = s.cache.InvalidatePackage(ctx, p.ID)

	return nil
}

// GetDeparture retrieves a departure, cached for DepartureTTL.
//
// Returns:
//   - error: catalog.ErrDepartureNotFound if the departure is not found.
func (s *Service) GetDeparture(ctx context.Context, id int64) (*domain.GroupDeparture, error) {
	const op = "service.catalog.GetDeparture"

	d, err := redisrepo.ReadThrough(
		ctx,
		s.cache,
		redisrepo.KeyDeparture(id),
		s.cfg.DepartureTTL,
		func(ctx context.Context) (domain.GroupDeparture, error) {
			d, err := s.repos.Departures().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.GroupDeparture{}, ErrDepartureNotFound
				}

				return domain.GroupDeparture{}, err
			}

			return *d, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &d, nil
}

// Availability returns seat counters for a departure, cached for AvailabilityTTL.
//
// Returns:
//   - error: catalog.ErrDepartureNotFound if the departure is not found.
func (s *Service) Availability(ctx context.Context, departureID int64) (*domain.DepartureAvailability, error) {
	const op = "service.catalog.Availability"

	a, err := redisrepo.ReadThrough(
		ctx,
		s.cache,
		redisrepo.KeyDepartureAvailability(departureID),
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.DepartureAvailability, error) {
			d, err := s.repos.Departures().Get(ctx, departureID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.DepartureAvailability{}, ErrDepartureNotFound
				}

				return domain.DepartureAvailability{}, err
			}

			return domain.DepartureAvailability{
				DepartureID: d.ID,
				Status:      d.Status,
				Total:       d.TotalSeats,
				Booked:      d.BookedSeats,
				Available:   d.AvailableSeats(),
			}, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &a, nil
}
