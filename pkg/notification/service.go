// Package notification creates, deduplicates and serves user notifications.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/model"
)

const (
	DefaultDedupWindow = 60 * time.Second
	DefaultListLimit   = 20
	MaxListLimit       = 100
)

// ErrDuplicate is returned by Create when an identical notification was
// created within the dedup window.
var ErrDuplicate = errors.New("duplicate notification")

// ErrSelf is returned by Create when a user would notify themselves.
var ErrSelf = errors.New("self notification")

// ErrReadOnly is returned by Create on a service built without a Deduper.
var ErrReadOnly = apperr.FailedPrecondition("notification service is read-only")

type Store interface {
	Insert(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, recipientID string, limit int) ([]model.Notification, error)
	// MarkRead returns apperr.ErrNotificationNotFound for unknown ids.
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
}

// Deduper claims a key for a window. Claim reports false when the key is
// already held.
type Deduper interface {
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Publisher forwards created notifications to the realtime gateways.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

type Service struct {
	store   Store
	dedup   Deduper
	pub     Publisher
	window  time.Duration
	log     *slog.Logger
	now     func() time.Time
	newUUID func() (uuid.UUID, error)
}

// NewService wires a Service. pub may be nil when nothing consumes
// deliveries. A nil dedup makes the service read-only: Create returns
// ErrReadOnly, the rest works against the store.
func NewService(store Store, dedup Deduper, pub Publisher, window time.Duration, log *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Service{
		store:   store,
		dedup:   dedup,
		pub:     pub,
		window:  window,
		log:     log.With("component", "notification"),
		now:     time.Now,
		newUUID: uuid.NewUUID,
	}
}

// DedupKey identifies repeat actions that collapse into one notification.
func DedupKey(t model.NotificationTrigger) string {
	return fmt.Sprintf("notif:dedup:%s:%s:%s:%s", t.RecipientID, t.SenderID, t.Type, t.PostID)
}

func DefaultMessage(t model.NotificationType) string {
	switch t {
	case model.NotificationLike:
		return "liked your post"
	case model.NotificationComment:
		return "commented on your post"
	case model.NotificationFollow:
		return "started following you"
	case model.NotificationMention:
		return "mentioned you"
	}
	return ""
}

func Validate(t model.NotificationTrigger) error {
	if !chat.ValidUserID(t.RecipientID) || !chat.ValidUserID(t.SenderID) {
		return apperr.ErrInvalidUserID
	}
	if !t.Type.Valid() {
		return apperr.ErrInvalidNotificationType
	}
	if t.Type.NeedsPost() && t.PostID == "" {
		return apperr.ErrNotificationNeedsPost
	}
	return nil
}

// Create validates, deduplicates, persists and publishes a notification.
// It returns ErrSelf or ErrDuplicate when the trigger is suppressed.
func (s *Service) Create(ctx context.Context, t model.NotificationTrigger) (*model.Notification, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	if t.RecipientID == t.SenderID {
		return nil, ErrSelf
	}
	if s.dedup == nil {
		return nil, ErrReadOnly
	}

	key := DedupKey(t)
	ok, err := s.dedup.Claim(ctx, key, s.window)
	if err != nil {
		return nil, apperr.Internal("dedup claim", err)
	}
	if !ok {
		return nil, ErrDuplicate
	}

	id, err := s.newUUID()
	if err != nil {
		s.release(ctx, key)
		return nil, apperr.Internal("notification id", err)
	}
	msg := t.Message
	if msg == "" {
		msg = DefaultMessage(t.Type)
	}
	n := &model.Notification{
		ID:          id.String(),
		RecipientID: t.RecipientID,
		SenderID:    t.SenderID,
		Type:        t.Type,
		PostID:      t.PostID,
		CommentID:   t.CommentID,
		Message:     msg,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, n); err != nil {
		s.release(ctx, key)
		return nil, apperr.Internal("save notification", err)
	}

	if s.pub != nil {
		if err := s.pub.Publish(ctx, n.RecipientID, n); err != nil {
			// stored already; clients catch up through List
			s.log.Warn("publish notification failed", "notification_id", n.ID, "err", err)
		}
	}
	return n, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.dedup.Release(ctx, key); err != nil {
		s.log.Warn("dedup release failed", "key", key, "err", err)
	}
}

func (s *Service) List(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	out, err := s.store.List(ctx, recipientID, limit)
	if err != nil {
		return nil, apperr.Internal("list notifications", err)
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, recipientID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotificationNotFound
	}
	if err := s.store.MarkRead(ctx, recipientID, id); err != nil {
		if errors.Is(err, apperr.ErrNotificationNotFound) {
			return err
		}
		return apperr.Internal("mark notification read", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	n, err := s.store.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal("mark notifications read", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal("count notifications", err)
	}
	return n, nil
}
