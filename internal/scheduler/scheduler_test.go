package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirinyoku/tourgo/internal/service/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepUnpaidExpired(ctx context.Context) (booking.SweepResult, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return booking.SweepResult{}, errors.New("sweep run without deadline")
	}
	return booking.SweepResult{Scanned: 1, Cancelled: 1}, s.err
}

func TestScheduler_RunsOnStart(t *testing.T) {
	sw := &countingSweeper{}

	s, err := New(context.Background(), sw, nil, Config{
		Interval:   time.Hour,
		RunOnStart: true,
	})
	require.NoError(t, err)

	s.Start()

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestScheduler_RunsEveryInterval(t *testing.T) {
	sw := &countingSweeper{err: errors.New("store unavailable")}

	s, err := New(context.Background(), sw, nil, Config{Interval: 50 * time.Millisecond})
	require.NoError(t, err)

	s.Start()

	// Failed runs are logged and do not stop the schedule.
	assert.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}
