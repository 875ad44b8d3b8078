// Package chat implements durable direct messaging: message creation,
// conversation history and the per-participant unread bookkeeping.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/snowflake"
)

const (
	MaxTextLength   = 4000
	DefaultPageSize = 30
	MaxPageSize     = 100
)

type IDGenerator interface {
	Generate() int64
}

type Service struct {
	store    Store
	ids      IDGenerator
	log      *slog.Logger
	pageSize int
}

func NewService(store Store, ids IDGenerator, log *slog.Logger, pageSize int) *Service {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return &Service{store: store, ids: ids, log: log.With("component", "chat"), pageSize: pageSize}
}

type SendInput struct {
	SenderID       string
	RecipientID    string
	ConversationID string
	Text           string
	AttachmentURL  string
	ReplyTo        int64
}

// Send durably creates a message, moves both participants' conversation rows
// to the new message and bumps the recipient's unread counter.
func (s *Service) Send(ctx context.Context, in SendInput) (*model.MessageView, error) {
	convID, err := ConversationID(in.SenderID, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if in.ConversationID != "" && in.ConversationID != convID {
		return nil, apperr.ErrConversationMismatch
	}

	text := strings.TrimSpace(in.Text)
	attachment := strings.TrimSpace(in.AttachmentURL)
	if text == "" && attachment == "" {
		return nil, apperr.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, apperr.ErrMessageTooLong
	}

	if in.ReplyTo != 0 {
		if _, err := s.store.GetMessage(ctx, convID, in.ReplyTo); err != nil {
			if errors.Is(err, apperr.ErrMessageNotFound) {
				return nil, apperr.ErrReplyNotFound
			}
			return nil, apperr.Internal("load reply target", err)
		}
	}

	id := s.ids.Generate()
	msg := &model.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       in.SenderID,
		Text:           text,
		AttachmentURL:  attachment,
		ReplyTo:        in.ReplyTo,
		ReadBy:         []string{in.SenderID},
		CreatedAt:      snowflake.Time(id),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("save message", err)
	}

	for _, p := range [][2]string{{in.SenderID, in.RecipientID}, {in.RecipientID, in.SenderID}} {
		if err := s.store.TouchConversation(ctx, p[0], p[1], convID, msg.ID, msg.CreatedAt); err != nil {
			return nil, apperr.Internal("update conversation", err)
		}
	}
	if err := s.store.AddUnread(ctx, in.RecipientID, convID, 1); err != nil {
		return nil, apperr.Internal("increment unread count", err)
	}

	s.log.Debug("message stored", "conversation_id", convID, "message_id", msg.ID, "sender_id", in.SenderID)
	return &model.MessageView{Message: *msg, Sender: s.profile(ctx, in.SenderID)}, nil
}

// History returns one page of a conversation in display order (oldest
// first). The page is selected newest first, starting below before.
// PageLimit is the page size History uses for a requested limit.
func (s *Service) PageLimit(limit int) int {
	if limit <= 0 {
		return s.pageSize
	}
	return min(limit, MaxPageSize)
}

func (s *Service) History(ctx context.Context, userID, conversationID string, before int64, limit int) ([]model.MessageView, error) {
	if _, err := OtherParticipant(conversationID, userID); err != nil {
		return nil, err
	}
	limit = s.PageLimit(limit)

	msgs, err := s.store.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}

	profiles := make(map[string]model.UserSummary, 2)
	views := make([]model.MessageView, len(msgs))
	for i, m := range msgs {
		p, ok := profiles[m.SenderID]
		if !ok {
			p = s.profile(ctx, m.SenderID)
			profiles[m.SenderID] = p
		}
		views[len(msgs)-1-i] = model.MessageView{Message: m, Sender: p}
	}
	return views, nil
}

// MarkConversationRead acknowledges every message the other participant
// sent and zeroes userID's counter. It returns how many messages it marked.
func (s *Service) MarkConversationRead(ctx context.Context, userID, conversationID string) (int, error) {
	if _, err := OtherParticipant(conversationID, userID); err != nil {
		return 0, err
	}

	unread, err := s.store.UnreadMessages(ctx, conversationID, userID)
	if err != nil {
		return 0, apperr.Internal("list unread messages", err)
	}
	for _, m := range unread {
		if err := s.store.AddReader(ctx, conversationID, m.ID, userID); err != nil {
			return 0, apperr.Internal("mark message read", err)
		}
	}
	if err := s.store.ResetUnread(ctx, userID, conversationID); err != nil {
		return 0, apperr.Internal("reset unread count", err)
	}
	return len(unread), nil
}

// MarkMessageRead acknowledges a single message, then recounts the unread
// messages of the conversation and moves the stored counter to that count.
// It returns the remaining unread count.
func (s *Service) MarkMessageRead(ctx context.Context, userID, conversationID string, messageID int64) (int64, error) {
	if _, err := OtherParticipant(conversationID, userID); err != nil {
		return 0, err
	}

	msg, err := s.store.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		if errors.Is(err, apperr.ErrMessageNotFound) {
			return 0, err
		}
		return 0, apperr.Internal("load message", err)
	}
	if !msg.ReadByUser(userID) {
		if err := s.store.AddReader(ctx, conversationID, messageID, userID); err != nil {
			return 0, apperr.Internal("mark message read", err)
		}
	}

	remaining, err := s.reconcile(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// reconcile derives userID's unread count from the messages themselves and
// corrects the stored counter when it has drifted.
func (s *Service) reconcile(ctx context.Context, userID, conversationID string) (int64, error) {
	unread, err := s.store.UnreadMessages(ctx, conversationID, userID)
	if err != nil {
		return 0, apperr.Internal("list unread messages", err)
	}
	want := int64(len(unread))

	if want == 0 {
		if err := s.store.ResetUnread(ctx, userID, conversationID); err != nil {
			return 0, apperr.Internal("reset unread count", err)
		}
		return 0, nil
	}

	have, err := s.store.UnreadCount(ctx, userID, conversationID)
	if err != nil {
		return 0, apperr.Internal("load unread count", err)
	}
	if have != want {
		s.log.Debug("unread counter drift", "user_id", userID, "conversation_id", conversationID, "stored", have, "derived", want)
		if err := s.store.AddUnread(ctx, userID, conversationID, want-have); err != nil {
			return 0, apperr.Internal("adjust unread count", err)
		}
	}
	return want, nil
}

// DeleteMessage soft-deletes a message: the text is overwritten and the
// attachment dropped, the row stays. Only its sender may delete it.
func (s *Service) DeleteMessage(ctx context.Context, userID, conversationID string, messageID int64) (*model.Message, error) {
	if _, err := OtherParticipant(conversationID, userID); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		if errors.Is(err, apperr.ErrMessageNotFound) {
			return nil, err
		}
		return nil, apperr.Internal("load message", err)
	}
	if msg.SenderID != userID {
		return nil, apperr.ErrNotSender
	}
	if !msg.Deleted {
		if err := s.store.SoftDelete(ctx, conversationID, messageID); err != nil {
			return nil, apperr.Internal("delete message", err)
		}
	}

	msg.Text = model.DeletedText
	msg.AttachmentURL = ""
	msg.Deleted = true
	return msg, nil
}

// Conversations lists userID's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}

	for i := range convs {
		c := &convs[i]
		c.OtherUser = s.profile(ctx, c.OtherUser.UserID)
		if c.LastMessageID != 0 {
			if m, err := s.store.GetMessage(ctx, c.ID, c.LastMessageID); err == nil {
				c.LastMessage = m
			}
		}
		n, err := s.store.UnreadCount(ctx, userID, c.ID)
		if err != nil {
			return nil, apperr.Internal("load unread count", err)
		}
		c.UnreadCount = n
	}

	sort.SliceStable(convs, func(i, j int) bool {
		if !convs[i].LastUpdated.Equal(convs[j].LastUpdated) {
			return convs[i].LastUpdated.After(convs[j].LastUpdated)
		}
		return convs[i].LastMessageID > convs[j].LastMessageID
	})
	return convs, nil
}

// UnreadTotal sums userID's counters over all conversations.
func (s *Service) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("list conversations", err)
	}
	var total int64
	for _, c := range convs {
		n, err := s.store.UnreadCount(ctx, userID, c.ID)
		if err != nil {
			return 0, apperr.Internal("load unread count", err)
		}
		total += n
	}
	return total, nil
}

func (s *Service) SaveProfile(ctx context.Context, p model.UserSummary) error {
	if !ValidUserID(p.UserID) {
		return apperr.ErrInvalidUserID
	}
	if p.Username == "" {
		p.Username = p.UserID
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return apperr.Internal("save profile", err)
	}
	return nil
}

// profile resolves a user, falling back to the bare id for unknown users.
func (s *Service) profile(ctx context.Context, userID string) model.UserSummary {
	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperr.ErrUserNotFound) {
			s.log.Warn("profile lookup failed", "user_id", userID, "err", err)
		}
		return model.UserSummary{UserID: userID, Username: userID}
	}
	return p
}
