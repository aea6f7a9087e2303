// Package messaging delivers domain events drained from the outbox.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher sends one event. Key orders events of the same application.
type Publisher interface {
	Publish(ctx context.Context, event, key string, payload []byte) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            3,
			WriteBackoffMin:        100 * time.Millisecond,
			WriteBackoffMax:        time.Second,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event, key string, payload []byte) error {
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published", "event", event, "key", key)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher stands in when no broker is configured; events are logged
// and acknowledged.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event, key string, payload []byte) error {
	p.logger.Info("event", "event", event, "key", key, "payload", string(payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
