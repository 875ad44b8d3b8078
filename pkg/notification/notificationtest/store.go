// Package notificationtest provides in-memory notification collaborators
// for tests.
package notificationtest

import (
	"context"
	"sort"
	"sync"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/model"
)

type Store struct {
	mu    sync.Mutex
	items map[string][]*model.Notification

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{items: make(map[string][]*model.Notification)}
}

func (s *Store) Insert(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	c := *n
	s.items[n.RecipientID] = append(s.items[n.RecipientID], &c)
	return nil
}

func (s *Store) List(_ context.Context, recipientID string, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	all := s.items[recipientID]
	out := make([]model.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *all[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, recipientID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, n := range s.items[recipientID] {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return apperr.ErrNotificationNotFound
}

func (s *Store) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	marked := 0
	for _, n := range s.items[recipientID] {
		if !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked, nil
}

func (s *Store) UnreadCount(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, it := range s.items[recipientID] {
		if !it.Read {
			n++
		}
	}
	return n, nil
}

// Publisher records published values.
type Publisher struct {
	mu        sync.Mutex
	Published []any
	Err       error
}

func (p *Publisher) Publish(_ context.Context, _ string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Published = append(p.Published, v)
	return nil
}

func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}
