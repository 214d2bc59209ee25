// Package memory is a process-local repository implementation used by tests
// and by STORE_DRIVER=memory. Transactions are serialized with one mutex and
// commit a copy-on-write snapshot, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
)

type state struct {
	bookings     map[uuid.UUID]*domain.Booking
	bookingOrder []uuid.UUID
	departures   map[int64]*domain.GroupDeparture
	packages     map[int64]*domain.Package
	customers    map[int64]*domain.Customer
	entries      []domain.RewardPointsEntry

	departureSeq int64
	packageSeq   int64
	customerSeq  int64
	entrySeq     int64
}

func newState() *state {
	return &state{
		bookings:   make(map[uuid.UUID]*domain.Booking),
		departures: make(map[int64]*domain.GroupDeparture),
		packages:   make(map[int64]*domain.Package),
		customers:  make(map[int64]*domain.Customer),
	}
}

func (s *state) clone() *state {
	cp := *s
	cp.bookings = make(map[uuid.UUID]*domain.Booking, len(s.bookings))
	for k, v := range s.bookings {
		cp.bookings[k] = v.Clone()
	}
	cp.bookingOrder = append([]uuid.UUID(nil), s.bookingOrder...)
	cp.departures = make(map[int64]*domain.GroupDeparture, len(s.departures))
	for k, v := range s.departures {
		cp.departures[k] = v.Clone()
	}
	cp.packages = make(map[int64]*domain.Package, len(s.packages))
	for k, v := range s.packages {
		p := *v
		cp.packages[k] = &p
	}
	cp.customers = make(map[int64]*domain.Customer, len(s.customers))
	for k, v := range s.customers {
		c := *v
		cp.customers[k] = &c
	}
	cp.entries = append([]domain.RewardPointsEntry(nil), s.entries...)
	return &cp
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.TxRunner = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.st.clone()
	if err := fn(ctx, &repos{v: view{st: snap}}); err != nil {
		return err
	}

	s.st = snap
	return nil
}

func (s *Store) Bookings() repository.Bookings     { return &bookingRepo{v: view{store: s}} }
func (s *Store) Departures() repository.Departures { return &departureRepo{v: view{store: s}} }
func (s *Store) Packages() repository.Packages     { return &packageRepo{v: view{store: s}} }
func (s *Store) Customers() repository.Customers   { return &customerRepo{v: view{store: s}} }

// view is either bound to a transaction snapshot or locks the store per call.
type view struct {
	store *Store
	st    *state
}

func (v view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

type repos struct {
	v view
}

func (r *repos) Bookings() repository.Bookings     { return &bookingRepo{v: r.v} }
func (r *repos) Departures() repository.Departures { return &departureRepo{v: r.v} }
func (r *repos) Packages() repository.Packages     { return &packageRepo{v: r.v} }
func (r *repos) Customers() repository.Customers   { return &customerRepo{v: r.v} }
