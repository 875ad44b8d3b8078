// Package chattest provides an in-memory chat.Store for tests.
package chattest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/model"
)

type convKey struct{ user, conv string }

type Store struct {
	mu       sync.Mutex
	messages map[string]map[int64]*model.Message
	convs    map[convKey]model.Conversation
	counters map[convKey]int64
	profiles map[string]model.UserSummary

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{
		messages: make(map[string]map[int64]*model.Message),
		convs:    make(map[convKey]model.Conversation),
		counters: make(map[convKey]int64),
		profiles: make(map[string]model.UserSummary),
	}
}

func clone(m *model.Message) model.Message {
	c := *m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	return c
}

func (s *Store) InsertMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.messages[m.ConversationID] == nil {
		s.messages[m.ConversationID] = make(map[int64]*model.Message)
	}
	c := clone(m)
	s.messages[m.ConversationID][m.ID] = &c
	return nil
}

func (s *Store) GetMessage(_ context.Context, conversationID string, id int64) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.messages[conversationID][id]
	if !ok {
		return nil, apperr.ErrMessageNotFound
	}
	c := clone(m)
	return &c, nil
}

// sorted returns the conversation's messages newest first.
func (s *Store) sorted(conversationID string) []*model.Message {
	out := make([]*model.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) ListMessages(_ context.Context, conversationID string, before int64, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.Message
	for _, m := range s.sorted(conversationID) {
		if before != 0 && m.ID >= before {
			continue
		}
		out = append(out, clone(m))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UnreadMessages(_ context.Context, conversationID, userID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.Message
	for _, m := range s.sorted(conversationID) {
		if m.UnreadFor(userID) {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

func (s *Store) AddReader(_ context.Context, conversationID string, id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	m, ok := s.messages[conversationID][id]
	if !ok {
		return apperr.ErrMessageNotFound
	}
	if !m.ReadByUser(userID) {
		m.ReadBy = append(m.ReadBy, userID)
	}
	return nil
}

func (s *Store) SoftDelete(_ context.Context, conversationID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	m, ok := s.messages[conversationID][id]
	if !ok {
		return apperr.ErrMessageNotFound
	}
	m.Text = model.DeletedText
	m.AttachmentURL = ""
	m.Deleted = true
	return nil
}

func (s *Store) TouchConversation(_ context.Context, userID, otherUserID, conversationID string, lastMessageID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.convs[convKey{userID, conversationID}] = model.Conversation{
		ID:            conversationID,
		UserID:        userID,
		OtherUser:     model.UserSummary{UserID: otherUserID},
		LastMessageID: lastMessageID,
		LastUpdated:   at,
	}
	return nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []model.Conversation
	for k, c := range s.convs {
		if k.user == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddUnread(_ context.Context, userID, conversationID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.counters[convKey{userID, conversationID}] += delta
	return nil
}

func (s *Store) ResetUnread(_ context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.counters[convKey{userID, conversationID}] = 0
	return nil
}

func (s *Store) UnreadCount(_ context.Context, userID, conversationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return s.counters[convKey{userID, conversationID}], nil
}

// SetUnread forces a counter value, simulating drift between the counter
// and the messages.
func (s *Store) SetUnread(userID, conversationID string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[convKey{userID, conversationID}] = n
}

func (s *Store) SaveProfile(_ context.Context, p model.UserSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) Profile(_ context.Context, userID string) (model.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.UserSummary{}, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserSummary{}, apperr.ErrUserNotFound
	}
	return p, nil
}
