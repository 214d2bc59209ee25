package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventDepartureChanged   = "departure_changed"
	EventDepartureCancelled = "departure_cancelled"
)

type DeparturesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewDeparturesPubSub(rdb *redis.Client) *DeparturesPubSub {
	return &DeparturesPubSub{
		rdb:     rdb,
		channel: ChannelDeparturesChanged(),
	}
}

type DepartureMsg struct {
	Type        string `json:"type"`
	DepartureID int64  `json:"departure_id"`
	TsUnix      int64  `json:"ts_unix"`
}

func (p *DeparturesPubSub) PublishDepartureChanged(ctx context.Context, departureID int64) error {
	return p.publish(ctx, EventDepartureChanged, departureID)
}

// PublishDepartureCancelled signals the external workflow that cascades a
// cancelled departure to its bookings.
func (p *DeparturesPubSub) PublishDepartureCancelled(ctx context.Context, departureID int64) error {
	return p.publish(ctx, EventDepartureCancelled, departureID)
}

func (p *DeparturesPubSub) publish(ctx context.Context, typ string, departureID int64) error {
	msg := DepartureMsg{
		Type:        typ,
		DepartureID: departureID,
		TsUnix:      time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *DeparturesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg DepartureMsg)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg DepartureMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				msg.DepartureID != 0 {
				handler(ctx, msg)
			}
		}
	}
}
