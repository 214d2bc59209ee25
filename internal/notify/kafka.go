package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaGateway publishes one message per notification, keyed by user so a
// user's notifications stay ordered within a partition.
type KafkaGateway struct {
	writer *kafka.Writer
}

func NewKafkaGateway(cfg KafkaConfig) *KafkaGateway {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}

	return &KafkaGateway{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (g *KafkaGateway) Notify(ctx context.Context, userID int64, message string) error {
	const op = "notify.KafkaGateway.Notify"

	data, err := json.Marshal(Message{
		UserID:    userID,
		Text:      message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := g.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: data,
	}); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (g *KafkaGateway) Close() error {
	return g.writer.Close()
}
