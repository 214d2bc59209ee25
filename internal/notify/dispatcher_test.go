package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Notify(ctx context.Context, userID int64, message string) error {
	args := m.Called(ctx, userID, message)
	return args.Error(0)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)

	next := &MockGateway{}
	next.On("Notify", mock.Anything, int64(7), mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			got = append(got, args.String(2))
			mu.Unlock()
		}).
		Return(nil)

	d := NewDispatcher(next, nil, DispatcherConfig{QueueSize: 8})

	for _, msg := range []string{"one", "two", "three"} {
		assert.NoError(t, d.Notify(context.Background(), 7, msg))
	}

	d.Close()

	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestDispatcher_FailuresDoNotPropagate(t *testing.T) {
	next := &MockGateway{}
	next.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	d := NewDispatcher(next, nil, DispatcherConfig{})

	assert.NoError(t, d.Notify(context.Background(), 1, "hello"))

	d.Close()

	next.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})

	next := &MockGateway{}
	next.On("Notify", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil)

	d := NewDispatcher(next, nil, DispatcherConfig{QueueSize: 1})

	// The worker may pick up the first message, so at most two are buffered
	// or in flight; the rest are dropped without blocking.
	for range 10 {
		assert.NoError(t, d.Notify(context.Background(), 1, "spam"))
	}

	close(release)
	d.Close()

	calls := len(next.Calls)
	assert.GreaterOrEqual(t, calls, 1)
	assert.LessOrEqual(t, calls, 2)
}

func TestDispatcher_NotifyAfterClose(t *testing.T) {
	next := &MockGateway{}
	d := NewDispatcher(next, nil, DispatcherConfig{})

	d.Close()
	d.Close()

	assert.NoError(t, d.Notify(context.Background(), 1, "late"))
	next.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogGateway(t *testing.T) {
	assert.NoError(t, NewLogGateway(nil).Notify(context.Background(), 1, "hi"))
}
