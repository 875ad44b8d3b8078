package main

import (
	"net/http"
	"sort"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/chat"
)

type PresenceResponse struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

func (s *Server) onlineUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.presence.Members(r.Context())
	if err != nil {
		s.fail(w, r, apperr.Internal("fetch presence", err))
		return
	}
	if users == nil {
		users = []string{}
	}
	sort.Strings(users)
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

func (s *Server) userPresence(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if !chat.ValidUserID(userID) {
		s.fail(w, r, apperr.ErrInvalidUserID)
		return
	}
	online, err := s.presence.IsOnline(r.Context(), userID)
	if err != nil {
		s.fail(w, r, apperr.Internal("fetch presence", err))
		return
	}
	writeJSON(w, http.StatusOK, PresenceResponse{UserID: userID, Online: online})
}
