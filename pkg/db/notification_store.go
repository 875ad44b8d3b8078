package db

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/model"
)

// NotificationStore implements notification.Store on ScyllaDB. Ids are
// time uuids so the clustering order is creation order.
type NotificationStore struct {
	db *Session
}

func NewNotificationStore(s *Session) *NotificationStore {
	return &NotificationStore{db: s}
}

func (s *NotificationStore) Insert(ctx context.Context, n *model.Notification) error {
	id, err := gocql.ParseUUID(n.ID)
	if err != nil {
		return errors.Wrapf(err, "notification id %q", n.ID)
	}
	q := `INSERT INTO notifications (recipient_id, id, sender_id, type, post_id, comment_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err = s.db.Query(q, n.RecipientID, id, n.SenderID, string(n.Type), n.PostID, n.CommentID, n.Message, n.Read, n.CreatedAt).
		WithContext(ctx).Exec()
	return errors.Wrapf(err, "insert notification %s", n.ID)
}

func (s *NotificationStore) scan(ctx context.Context, recipientID string, limit int, unreadOnly bool) ([]model.Notification, error) {
	q := `SELECT id, sender_id, type, post_id, comment_id, message, read, created_at FROM notifications WHERE recipient_id = ?`
	args := []any{recipientID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	iter := s.db.Query(q, args...).WithContext(ctx).Iter()

	var out []model.Notification
	var (
		id  gocql.UUID
		typ string
		n   model.Notification
	)
	for iter.Scan(&id, &n.SenderID, &typ, &n.PostID, &n.CommentID, &n.Message, &n.Read, &n.CreatedAt) {
		if unreadOnly && n.Read {
			n = model.Notification{}
			continue
		}
		n.ID = id.String()
		n.RecipientID = recipientID
		n.Type = model.NotificationType(typ)
		out = append(out, n)
		n = model.Notification{}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "list notifications for %s", recipientID)
	}
	return out, nil
}

func (s *NotificationStore) List(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	return s.scan(ctx, recipientID, limit, false)
}

func (s *NotificationStore) MarkRead(ctx context.Context, recipientID, id string) error {
	uid, err := gocql.ParseUUID(id)
	if err != nil {
		return apperr.ErrNotificationNotFound
	}
	q := `UPDATE notifications SET read = true WHERE recipient_id = ? AND id = ? IF EXISTS`
	applied, err := s.db.Query(q, recipientID, uid).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return errors.Wrapf(err, "mark notification %s", id)
	}
	if !applied {
		return apperr.ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	unread, err := s.scan(ctx, recipientID, 0, true)
	if err != nil {
		return 0, err
	}
	b := s.db.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, n := range unread {
		uid, _ := gocql.ParseUUID(n.ID)
		b.Query(`UPDATE notifications SET read = true WHERE recipient_id = ? AND id = ?`, recipientID, uid)
	}
	if len(unread) > 0 {
		if err := s.db.ExecuteBatch(b); err != nil {
			return 0, errors.Wrapf(err, "mark all notifications for %s", recipientID)
		}
	}
	return len(unread), nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	unread, err := s.scan(ctx, recipientID, 0, true)
	if err != nil {
		return 0, err
	}
	return int64(len(unread)), nil
}
