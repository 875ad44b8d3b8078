// Package presence tracks which users hold a live realtime connection.
//
// A Table maps each user to exactly one connection handle. A later connect
// for the same user replaces the earlier handle (last writer wins). The
// inverse map from handle to user makes disconnect O(1) and lets a stale
// disconnect from a replaced handle be ignored.
package presence

import (
	"sort"
	"sync"
)

type Table[H comparable] struct {
	mu     sync.RWMutex
	byUser map[string]H
	byConn map[H]string
}

func NewTable[H comparable]() *Table[H] {
	return &Table[H]{
		byUser: make(map[string]H),
		byConn: make(map[H]string),
	}
}

// Connect maps userID to h. If userID was mapped to another handle, that
// handle is returned with replaced set; it no longer resolves to userID.
func (t *Table[H]) Connect(userID string, h H) (prev H, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byUser[userID]; ok && old != h {
		delete(t.byConn, old)
		prev, replaced = old, true
	}
	// a handle re-identifying as another user gives up its old mapping
	if other, ok := t.byConn[h]; ok && other != userID {
		delete(t.byUser, other)
	}
	t.byUser[userID] = h
	t.byConn[h] = userID
	return prev, replaced
}

// Disconnect removes the entry owned by h. ok is false when h maps to no
// user, e.g. on a duplicate disconnect or after h was replaced.
func (t *Table[H]) Disconnect(h H) (userID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok = t.byConn[h]
	if !ok {
		return "", false
	}
	delete(t.byConn, h)
	delete(t.byUser, userID)
	return userID, true
}

func (t *Table[H]) Lookup(userID string) (H, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byUser[userID]
	return h, ok
}

// UserOf returns the user h is registered as.
func (t *Table[H]) UserOf(h H) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.byConn[h]
	return u, ok
}

// Online returns the connected user ids in ascending order.
func (t *Table[H]) Online() []string {
	t.mu.RLock()
	users := make([]string, 0, len(t.byUser))
	for u := range t.byUser {
		users = append(users, u)
	}
	t.mu.RUnlock()

	sort.Strings(users)
	return users
}

func (t *Table[H]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser)
}
