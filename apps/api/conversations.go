package main

import (
	"net/http"

	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/model"
)

type UnreadResponse struct {
	Unread int64 `json:"unread"`
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chat.Conversations(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) unreadTotal(w http.ResponseWriter, r *http.Request) {
	n, err := s.chat.UnreadTotal(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{Unread: n})
}

func (s *Server) markConversationRead(w http.ResponseWriter, r *http.Request) {
	marked, err := s.chat.MarkConversationRead(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReadResponse{Marked: marked})
}
