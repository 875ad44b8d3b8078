package db

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/model"
)

// ChatStore implements chat.Store on ScyllaDB.
type ChatStore struct {
	db *Session
}

func NewChatStore(s *Session) *ChatStore {
	return &ChatStore{db: s}
}

const messageColumns = `conversation_id, id, sender_id, text, attachment_url, reply_to, read_by, deleted, created_at`

func scanMessage(scan func(dest ...any) bool) (model.Message, bool) {
	var m model.Message
	ok := scan(&m.ConversationID, &m.ID, &m.SenderID, &m.Text, &m.AttachmentURL, &m.ReplyTo, &m.ReadBy, &m.Deleted, &m.CreatedAt)
	return m, ok
}

func (s *ChatStore) InsertMessage(ctx context.Context, m *model.Message) error {
	q := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err := s.db.Query(q, m.ConversationID, m.ID, m.SenderID, m.Text, m.AttachmentURL, m.ReplyTo, m.ReadBy, m.Deleted, m.CreatedAt).
		WithContext(ctx).Exec()
	return errors.Wrapf(err, "insert message %d", m.ID)
}

func (s *ChatStore) GetMessage(ctx context.Context, conversationID string, id int64) (*model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? AND id = ?`
	var m model.Message
	err := s.db.Query(q, conversationID, id).WithContext(ctx).
		Scan(&m.ConversationID, &m.ID, &m.SenderID, &m.Text, &m.AttachmentURL, &m.ReplyTo, &m.ReadBy, &m.Deleted, &m.CreatedAt)
	if err == gocql.ErrNotFound {
		return nil, apperr.ErrMessageNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get message %d", id)
	}
	return &m, nil
}

func (s *ChatStore) ListMessages(ctx context.Context, conversationID string, before int64, limit int) ([]model.Message, error) {
	var iter *gocql.Iter
	if before != 0 {
		q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? AND id < ? LIMIT ?`
		iter = s.db.Query(q, conversationID, before, limit).WithContext(ctx).Iter()
	} else {
		q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ? LIMIT ?`
		iter = s.db.Query(q, conversationID, limit).WithContext(ctx).Iter()
	}

	var out []model.Message
	for {
		m, ok := scanMessage(iter.Scan)
		if !ok {
			break
		}
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "list messages %s", conversationID)
	}
	return out, nil
}

// UnreadMessages scans the whole conversation partition; read_by is a set
// column and cannot be filtered server side.
func (s *ChatStore) UnreadMessages(ctx context.Context, conversationID, userID string) ([]model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	iter := s.db.Query(q, conversationID).WithContext(ctx).PageSize(500).Iter()

	var out []model.Message
	for {
		m, ok := scanMessage(iter.Scan)
		if !ok {
			break
		}
		if m.UnreadFor(userID) {
			out = append(out, m)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "scan unread %s", conversationID)
	}
	return out, nil
}

func (s *ChatStore) AddReader(ctx context.Context, conversationID string, id int64, userID string) error {
	q := `UPDATE messages SET read_by = read_by + ? WHERE conversation_id = ? AND id = ? IF EXISTS`
	applied, err := s.db.Query(q, []string{userID}, conversationID, id).WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return errors.Wrapf(err, "add reader to %d", id)
	}
	if !applied {
		return apperr.ErrMessageNotFound
	}
	return nil
}

func (s *ChatStore) SoftDelete(ctx context.Context, conversationID string, id int64) error {
	q := `UPDATE messages SET text = ?, attachment_url = '', deleted = true WHERE conversation_id = ? AND id = ? IF EXISTS`
	applied, err := s.db.Query(q, model.DeletedText, conversationID, id).WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return errors.Wrapf(err, "soft delete %d", id)
	}
	if !applied {
		return apperr.ErrMessageNotFound
	}
	return nil
}

func (s *ChatStore) TouchConversation(ctx context.Context, userID, otherUserID, conversationID string, lastMessageID int64, at time.Time) error {
	q := `INSERT INTO user_conversations (user_id, conversation_id, other_user_id, last_message_id, last_updated) VALUES (?, ?, ?, ?, ?)`
	err := s.db.Query(q, userID, conversationID, otherUserID, lastMessageID, at).WithContext(ctx).Exec()
	return errors.Wrapf(err, "update conversation for %s", userID)
}

func (s *ChatStore) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	q := `SELECT conversation_id, other_user_id, last_message_id, last_updated FROM user_conversations WHERE user_id = ?`
	iter := s.db.Query(q, userID).WithContext(ctx).Iter()

	var out []model.Conversation
	var c model.Conversation
	for iter.Scan(&c.ID, &c.OtherUser.UserID, &c.LastMessageID, &c.LastUpdated) {
		c.UserID = userID
		out = append(out, c)
		c = model.Conversation{}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "list conversations for %s", userID)
	}
	return out, nil
}

func (s *ChatStore) AddUnread(ctx context.Context, userID, conversationID string, delta int64) error {
	q := `UPDATE conversation_counters SET unread_count = unread_count + ? WHERE user_id = ? AND conversation_id = ?`
	err := s.db.Query(q, delta, userID, conversationID).WithContext(ctx).Exec()
	return errors.Wrapf(err, "add unread for %s", userID)
}

// ResetUnread moves the counter back to zero by subtracting its current
// value. Counter rows are never deleted: updates to a deleted counter are
// not guaranteed to apply.
func (s *ChatStore) ResetUnread(ctx context.Context, userID, conversationID string) error {
	n, err := s.UnreadCount(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return errors.Wrapf(s.AddUnread(ctx, userID, conversationID, -n), "reset unread for %s", userID)
}

func (s *ChatStore) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	var n int64
	q := `SELECT unread_count FROM conversation_counters WHERE user_id = ? AND conversation_id = ?`
	err := s.db.Query(q, userID, conversationID).WithContext(ctx).Scan(&n)
	if err == gocql.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "unread count for %s", userID)
	}
	return n, nil
}

func (s *ChatStore) SaveProfile(ctx context.Context, p model.UserSummary) error {
	q := `INSERT INTO users (user_id, username, avatar_url) VALUES (?, ?, ?)`
	err := s.db.Query(q, p.UserID, p.Username, p.AvatarURL).WithContext(ctx).Exec()
	return errors.Wrapf(err, "save profile %s", p.UserID)
}

func (s *ChatStore) Profile(ctx context.Context, userID string) (model.UserSummary, error) {
	p := model.UserSummary{UserID: userID}
	q := `SELECT username, avatar_url FROM users WHERE user_id = ?`
	err := s.db.Query(q, userID).WithContext(ctx).Scan(&p.Username, &p.AvatarURL)
	if err == gocql.ErrNotFound {
		return model.UserSummary{}, apperr.ErrUserNotFound
	}
	if err != nil {
		return model.UserSummary{}, errors.Wrapf(err, "profile %s", userID)
	}
	return p, nil
}
