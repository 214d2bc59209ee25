package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
)

type packageRepo struct {
	v view
}

func (r *packageRepo) Create(_ context.Context, p *domain.Package) error {
	return r.v.do(func(st *state) error {
		st.packageSeq++
		p.ID = st.packageSeq
		cp := *p
		st.packages[p.ID] = &cp
		return nil
	})
}

func (r *packageRepo) Get(_ context.Context, id int64) (*domain.Package, error) {
	var out *domain.Package
	err := r.v.do(func(st *state) error {
		p, ok := st.packages[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

type customerRepo struct {
	v view
}

func (r *customerRepo) Create(_ context.Context, c *domain.Customer) error {
	return r.v.do(func(st *state) error {
		st.customerSeq++
		c.ID = st.customerSeq
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		cp := *c
		st.customers[c.ID] = &cp
		return nil
	})
}

func (r *customerRepo) PointsBalance(_ context.Context, customerID int64) (int64, error) {
	var balance int64
	err := r.v.do(func(st *state) error {
		c, ok := st.customers[customerID]
		if !ok {
			return repository.ErrNotFound
		}
		balance = c.RewardPoints
		return nil
	})
	return balance, err
}

func (r *customerRepo) AdjustPoints(_ context.Context, e domain.RewardPointsEntry) (int64, error) {
	var balance int64
	err := r.v.do(func(st *state) error {
		c, ok := st.customers[e.CustomerID]
		if !ok {
			return repository.ErrNotFound
		}
		if c.RewardPoints+e.Amount < 0 {
			return repository.ErrInsufficientBalance
		}
		c.RewardPoints += e.Amount
		st.entrySeq++
		e.ID = st.entrySeq
		st.entries = append(st.entries, e)
		balance = c.RewardPoints
		return nil
	})
	return balance, err
}

func (r *customerRepo) Entries(_ context.Context, customerID int64, limit int) ([]domain.RewardPointsEntry, error) {
	var out []domain.RewardPointsEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.entries {
			if e.CustomerID == customerID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
