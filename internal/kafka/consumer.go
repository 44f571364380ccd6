package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads until ctx ends or the handler fails. A message's offset is
// committed only after the handler accepts it, so a failed event is
// redelivered when the group resumes. A cancelled context is a clean stop
// and returns nil.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, ReservationEvent) error) error {
	return c.consume(ctx, c.reader, handler)
}

// messageReader is the part of kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (c *Consumer) consume(ctx context.Context, reader messageReader, handler func(context.Context, ReservationEvent) error) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		if event, ok := c.decode(msg); ok {
			if err := handler(ctx, event); err != nil {
				return errors.Wrapf(err, "handle message at offset %d", msg.Offset)
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}

// decode drops malformed payloads; redelivering them would never succeed.
func (c *Consumer) decode(msg kafka.Message) (ReservationEvent, bool) {
	var event ReservationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Warn("skip undecodable event",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return ReservationEvent{}, false
	}
	return event, true
}
