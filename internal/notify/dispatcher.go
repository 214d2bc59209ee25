package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type DispatcherConfig struct {
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher is a fire-and-forget Gateway. Notify never blocks: when the
// queue is full the message is dropped and logged.
type Dispatcher struct {
	next   Gateway
	logger *slog.Logger
	cfg    DispatcherConfig

	queue chan Message
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(next Gateway, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		next:   next,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan Message, cfg.QueueSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) Notify(_ context.Context, userID int64, message string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped: dispatcher closed", slog.Int64("user_id", userID))
		return nil
	}

	select {
	case d.queue <- Message{UserID: userID, Text: message, CreatedAt: time.Now().UTC()}:
	default:
		d.logger.Warn("notification dropped: queue full", slog.Int64("user_id", userID))
	}

	return nil
}

// Close stops accepting messages and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for m := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		if err := d.next.Notify(ctx, m.UserID, m.Text); err != nil {
			d.logger.Error("notification failed",
				slog.Int64("user_id", m.UserID),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
