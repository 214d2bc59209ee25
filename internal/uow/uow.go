package uow

import (
	"context"
	"time"

	"github.com/kirinyoku/tourgo/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

type Config struct {
	// MaxAttempts bounds how many times a transaction is run when Retryable
	// reports the failure as transient.
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

// UoW represents a unit of work.
type UoW struct {
	runner repository.TxRunner
	cfg    Config
}

func NewUoW(runner repository.TxRunner, cfg Config) *UoW {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	if cfg.Backoff <= 0 {
		cfg.Backoff = 20 * time.Millisecond
	}

	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return false }
	}

	return &UoW{runner: runner, cfg: cfg}
}

// Repos returns repositories that are not bound to a transaction.
func (u *UoW) Repos() repository.Repos {
	return u.runner
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks. Hooks registered by an attempt that
// was rolled back are discarded.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, r repository.Repos, after func(AfterCommit)) error,
) error {
	var (
		hooks []AfterCommit
		err   error
	)

	for attempt := 1; attempt <= u.cfg.MaxAttempts; attempt++ {
		hooks = hooks[:0]

		err = u.runner.RunTx(ctx, func(ctx context.Context, r repository.Repos) error {
			return fn(ctx, r, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil || !u.cfg.Retryable(err) || attempt == u.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * u.cfg.Backoff):
		}
	}
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
