package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/tourgo/internal/config"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/notify"
	"github.com/kirinyoku/tourgo/internal/postgres"
	"github.com/kirinyoku/tourgo/internal/redis"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tourgo/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
	"github.com/kirinyoku/tourgo/internal/scheduler"
	"github.com/kirinyoku/tourgo/internal/service"
	"github.com/kirinyoku/tourgo/internal/service/booking"
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/kirinyoku/tourgo/internal/uow"
	httpgin "github.com/kirinyoku/tourgo/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

// core is what both the API server and the sweeper need.
type core struct {
	services *service.Services
	pubsub   *redisrepo.DeparturesPubSub
	deps     httpgin.Deps
	closers  []func() error
}

func newCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core, error) {
	c := &core{}

	var (
		store     repository.TxRunner
		uowConfig uow.Config
	)

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	default:
		pool, err := postgres.New(ctx, postgres.Config{
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Name:     cfg.Postgres.Name,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })

		pgStore := postgresrepo.NewStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			c.close(logger)
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}

		store = pgStore
		uowConfig.Retryable = postgresrepo.IsRetryable
	}

	var cache *redisrepo.Cache

	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			c.close(logger)
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		c.closers = append(c.closers, rdb.Close)

		cache = redisrepo.New(rdb)
		c.pubsub = redisrepo.NewDeparturesPubSub(rdb)
		c.deps = httpgin.Deps{
			Idempotency: redisrepo.NewIdempotencyStore(rdb, cfg.Booking.IdempotencyTTL),
			Limiter:     redisrepo.NewSlidingWindowLimiter(rdb, "bookings", cfg.Booking.RateLimitPerMinute, time.Minute),
		}
	} else {
		logger.Warn("REDIS_ADDR not set; caching, idempotency and rate limiting are disabled")
	}

	var gateway notify.Gateway = notify.NewLogGateway(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kg := notify.NewKafkaGateway(notify.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.NotificationsTopic,
		})
		c.closers = append(c.closers, kg.Close)
		gateway = kg
	}

	dispatcher := notify.NewDispatcher(gateway, logger, notify.DispatcherConfig{})
	// Registered last so it drains before the gateway closes.
	c.closers = append(c.closers, func() error { dispatcher.Close(); return nil })

	var publisher capacity.Publisher
	if c.pubsub != nil {
		publisher = c.pubsub
	}

	c.services = service.NewServices(store, cache, publisher, dispatcher, logger, service.Config{
		UoW: uowConfig,
		Booking: booking.Config{
			RestorePointsOnCancel: cfg.Booking.RestorePointsOnCancel,
		},
	})

	return c, nil
}

// close releases resources in reverse order of acquisition.
func (c *core) close(logger *slog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	core       *core
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	c, err := newCore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	router := httpgin.NewRouter(c.services, c.deps, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		core:   c,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.core.close(a.logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	if a.core.pubsub != nil {
		g.Go(func() error {
			err := a.core.pubsub.Subscribe(gCtx, a.onDepartureEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("departure subscription: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// onDepartureEvent reports cancelled departures that still carry live
// bookings. Cascading them is left to the operator workflow.
func (a *App) onDepartureEvent(ctx context.Context, msg redisrepo.DepartureMsg) {
	if msg.Type != redisrepo.EventDepartureCancelled {
		return
	}

	depID := msg.DepartureID
	live, err := a.core.services.Booking.List(ctx, domain.BookingFilter{
		GroupDepartureID: &depID,
		Statuses:         []domain.BookingStatus{domain.BookingPending, domain.BookingConfirmed},
	})
	if err != nil {
		a.logger.Warn("departure cancelled; listing bookings failed",
			slog.Int64("departure_id", depID),
			slog.String("error", err.Error()),
		)
		return
	}

	if len(live) > 0 {
		a.logger.Warn("departure cancelled with live bookings",
			slog.Int64("departure_id", depID),
			slog.Int("bookings", len(live)),
		)
	}
}

// Sweeper runs the unpaid-expiry sweep on a schedule.
type Sweeper struct {
	cfg    *config.Config
	logger *slog.Logger
	core   *core
}

func NewSweeper(cfg *config.Config, logger *slog.Logger) (*Sweeper, error) {
	c, err := newCore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Sweeper{cfg: cfg, logger: logger, core: c}, nil
}

// Once runs a single sweep and returns its result.
func (s *Sweeper) Once(ctx context.Context) (booking.SweepResult, error) {
	defer s.core.close(s.logger)
	return s.core.services.Booking.SweepUnpaidExpired(ctx)
}

func (s *Sweeper) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer s.core.close(s.logger)

	sched, err := scheduler.New(ctx, s.core.services.Booking, s.logger, scheduler.Config{
		Interval:   s.cfg.Sweep.Interval,
		RunOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	s.logger.Info("sweeper started", slog.Duration("interval", s.cfg.Sweep.Interval))
	sched.Start()

	<-ctx.Done()
	s.logger.Info("shutting down sweeper")

	return sched.Shutdown()
}
