package main

import (
	"net/http"

	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/model"
)

type SendMessageRequest struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	AttachmentURL  string `json:"attachment_url"`
	ReplyTo        int64  `json:"reply_to,string,omitempty"`
}

type HistoryResponse struct {
	Messages []model.MessageView `json:"messages"`
	// NextBefore is the cursor for the next older page. It is set only for a
	// full page, so a conversation that is an exact multiple of the page size
	// ends with one empty page.
	NextBefore int64 `json:"next_before,string,omitempty"`
}

type ReadResponse struct {
	Marked    int   `json:"marked,omitempty"`
	Remaining int64 `json:"remaining"`
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	msg, err := s.chat.Send(r.Context(), chat.SendInput{
		SenderID:       auth.UserID(r.Context()),
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
		Text:           req.Text,
		AttachmentURL:  req.AttachmentURL,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	before, err := queryInt(r, "before")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	msgs, err := s.chat.History(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), before, int(limit))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := HistoryResponse{Messages: msgs}
	if len(msgs) > 0 && len(msgs) == s.chat.PageLimit(int(limit)) {
		resp.NextBefore = msgs[0].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) markMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathMessageID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	remaining, err := s.chat.MarkMessageRead(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReadResponse{Remaining: remaining})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathMessageID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := s.chat.DeleteMessage(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
