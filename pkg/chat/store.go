package chat

import (
	"context"
	"time"

	"github.com/mahaj/lionsphere/pkg/model"
)

// Store is the durable side of chat. Implementations return
// apperr.ErrMessageNotFound and apperr.ErrUserNotFound for missing rows.
type Store interface {
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, conversationID string, id int64) (*model.Message, error)
	// ListMessages returns up to limit messages newest first. before, when
	// non-zero, is an exclusive upper bound on message ids.
	ListMessages(ctx context.Context, conversationID string, before int64, limit int) ([]model.Message, error)
	// UnreadMessages returns every message of the conversation that counts
	// as unread for userID.
	UnreadMessages(ctx context.Context, conversationID, userID string) ([]model.Message, error)
	AddReader(ctx context.Context, conversationID string, id int64, userID string) error
	SoftDelete(ctx context.Context, conversationID string, id int64) error

	// TouchConversation upserts userID's row for the conversation with the
	// latest message pointer and timestamp.
	TouchConversation(ctx context.Context, userID, otherUserID, conversationID string, lastMessageID int64, at time.Time) error
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	AddUnread(ctx context.Context, userID, conversationID string, delta int64) error
	ResetUnread(ctx context.Context, userID, conversationID string) error
	UnreadCount(ctx context.Context, userID, conversationID string) (int64, error)

	SaveProfile(ctx context.Context, p model.UserSummary) error
	Profile(ctx context.Context, userID string) (model.UserSummary, error)
}
