// Package bus moves JSON events between services over Kafka.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// Publish writes v as JSON. Messages with the same key land on the same
// partition, which keeps one recipient's notifications ordered.
func (p *Publisher) Publish(ctx context.Context, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	return errors.Wrapf(err, "publish to %s", p.writer.Topic)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Reader is the part of *kafka.Reader the consume loop needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewReader returns a group reader. Gateways pass a per-instance group so
// every gateway sees every delivery.
func NewReader(brokers []string, topic, groupID string, startOffset int64) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
}

// Handler processes one message value. Errors are logged and the message is
// skipped.
type Handler func(ctx context.Context, value []byte) error

// Consume feeds every message of r to h until ctx is done. Read errors are
// retried after retryWait.
func Consume(ctx context.Context, r Reader, h Handler, retryWait time.Duration, log *slog.Logger) {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("error reading message, retrying", "err", err, "wait", retryWait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryWait):
			}
			continue
		}

		if err := h(ctx, m.Value); err != nil {
			log.Warn("failed to handle message", "topic", m.Topic, "offset", m.Offset, "err", err)
		}
	}
}
