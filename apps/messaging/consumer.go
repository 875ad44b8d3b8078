package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/notification"
)

// Consumer turns notification triggers into stored notifications. The
// service publishes each created record to the delivery topic.
type Consumer struct {
	notifications *notification.Service
	metrics       *metrics.Messaging
	log           *slog.Logger
}

func NewConsumer(svc *notification.Service, m *metrics.Messaging, log *slog.Logger) *Consumer {
	return &Consumer{notifications: svc, metrics: m, log: log.With("component", "consumer")}
}

// Handle processes one trigger. Only infrastructure failures are returned;
// malformed and suppressed triggers are counted and skipped.
func (c *Consumer) Handle(ctx context.Context, value []byte) error {
	var t model.NotificationTrigger
	if err := json.Unmarshal(value, &t); err != nil {
		c.metrics.Processed.WithLabelValues("invalid").Inc()
		c.log.Warn("failed to unmarshal trigger", "err", err)
		return nil
	}

	n, err := c.notifications.Create(ctx, t)
	switch {
	case err == nil:
		c.metrics.Processed.WithLabelValues("created").Inc()
		c.log.Debug("notification created", "notification_id", n.ID, "recipient_id", n.RecipientID, "type", n.Type)
		return nil
	case errors.Is(err, notification.ErrDuplicate):
		c.metrics.Processed.WithLabelValues("duplicate").Inc()
		return nil
	case errors.Is(err, notification.ErrSelf):
		c.metrics.Processed.WithLabelValues("self").Inc()
		return nil
	case apperr.CodeOf(err) == apperr.CodeInvalidArgument:
		c.metrics.Processed.WithLabelValues("invalid").Inc()
		c.log.Warn("dropping invalid trigger", "recipient_id", t.RecipientID, "sender_id", t.SenderID, "err", err)
		return nil
	default:
		c.metrics.Processed.WithLabelValues("error").Inc()
		return err
	}
}
