package main

import (
	"net/http"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/model"
	"github.com/mahaj/lionsphere/pkg/notification"
)

type TriggerRequest struct {
	RecipientID string                 `json:"recipient_id"`
	Type        model.NotificationType `json:"type"`
	PostID      string                 `json:"post_id"`
	CommentID   string                 `json:"comment_id"`
	Message     string                 `json:"message"`
}

type MarkAllResponse struct {
	Marked int `json:"marked"`
}

// triggerNotification validates a trigger and hands it to the messaging
// worker. Deduplication and persistence happen there.
func (s *Server) triggerNotification(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	t := model.NotificationTrigger{
		RecipientID: req.RecipientID,
		SenderID:    auth.UserID(r.Context()),
		Type:        req.Type,
		PostID:      req.PostID,
		CommentID:   req.CommentID,
		Message:     req.Message,
	}
	if err := notification.Validate(t); err != nil {
		s.fail(w, r, err)
		return
	}
	if t.RecipientID == t.SenderID {
		// nothing to deliver
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.triggers.Publish(r.Context(), t.RecipientID, t); err != nil {
		s.fail(w, r, apperr.Internal("publish trigger", err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.notifications.List(r.Context(), auth.UserID(r.Context()), int(limit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out == nil {
		out = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{Unread: n})
}

func (s *Server) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkAllRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkAllResponse{Marked: n})
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
