package service

import (
	"log/slog"

	"github.com/kirinyoku/tourgo/internal/notify"
	"github.com/kirinyoku/tourgo/internal/repository"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
	"github.com/kirinyoku/tourgo/internal/service/booking"
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/kirinyoku/tourgo/internal/service/catalog"
	"github.com/kirinyoku/tourgo/internal/service/datechange"
	"github.com/kirinyoku/tourgo/internal/service/rewards"
	"github.com/kirinyoku/tourgo/internal/uow"
)

type Services struct {
	Catalog    *catalog.Service
	Capacity   *capacity.Service
	Rewards    *rewards.Service
	Booking    *booking.Service
	DateChange *datechange.Service
}

type Config struct {
	UoW        uow.Config
	Catalog    catalog.Config
	Capacity   capacity.Config
	Rewards    rewards.Config
	Booking    booking.Config
	DateChange datechange.Config
}

// NewServices wires the services over one store. cache and pubsub may be nil
// when Redis is not configured.
func NewServices(
	store repository.TxRunner,
	cache *redisrepo.Cache,
	pubsub capacity.Publisher,
	notifier notify.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Services {
	u := uow.NewUoW(store, cfg.UoW)

	cat := catalog.New(store, cache, cfg.Catalog)
	capSvc := capacity.New(u, cache, pubsub, logger, cfg.Capacity)
	rew := rewards.New(u, logger, cfg.Rewards)

	return &Services{
		Catalog:    cat,
		Capacity:   capSvc,
		Rewards:    rew,
		Booking:    booking.New(u, cat, capSvc, rew, notifier, logger, cfg.Booking),
		DateChange: datechange.New(u, notifier, logger, cfg.DateChange),
	}
}
