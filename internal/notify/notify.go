// Package notify carries the decision to tell a user something to a
// delivery channel. Delivery itself happens outside this service.
package notify

import (
	"context"
	"log/slog"
	"time"
)

type Gateway interface {
	Notify(ctx context.Context, userID int64, message string) error
}

// Message is the payload published for downstream delivery.
type Message struct {
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// LogGateway writes notifications to the log. It is used when no broker is
// configured.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Notify(ctx context.Context, userID int64, message string) error {
	g.logger.InfoContext(ctx, "notification", slog.Int64("user_id", userID), slog.String("message", message))
	return nil
}
