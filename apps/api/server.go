package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/auth"
	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/metrics"
	"github.com/mahaj/lionsphere/pkg/notification"
)

// PresenceReader answers presence queries from the gateways' shared mirror.
type PresenceReader interface {
	Members(ctx context.Context) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type Server struct {
	chat          *chat.Service
	notifications *notification.Service
	triggers      notification.Publisher
	presence      PresenceReader
	issuer        *auth.Issuer
	metrics       *metrics.API
	log           *slog.Logger
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Instrument(pattern, h))
	}
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Instrument(pattern, s.issuer.Middleware(h)))
	}

	public("POST /login", s.login)
	public("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })

	protected("POST /messages", s.createMessage)
	protected("GET /conversations", s.listConversations)
	protected("GET /conversations/unread", s.unreadTotal)
	protected("GET /conversations/{id}/messages", s.history)
	protected("POST /conversations/{id}/read", s.markConversationRead)
	protected("POST /conversations/{id}/messages/{messageID}/read", s.markMessageRead)
	protected("DELETE /conversations/{id}/messages/{messageID}", s.deleteMessage)

	protected("GET /presence", s.onlineUsers)
	protected("GET /presence/{userID}", s.userPresence)

	protected("POST /notifications", s.triggerNotification)
	protected("GET /notifications", s.listNotifications)
	protected("GET /notifications/unread", s.unreadNotifications)
	protected("POST /notifications/read", s.markAllNotificationsRead)
	protected("POST /notifications/{id}/read", s.markNotificationRead)

	return CORSMiddleware(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidArg("invalid request body")
	}
	return nil
}

// fail logs server-side failures and renders err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	apperr.Write(w, err)
}

func queryInt(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.InvalidArg("invalid " + key)
	}
	return n, nil
}

func pathMessageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("messageID"), 10, 64)
	if err != nil {
		return 0, apperr.ErrMessageNotFound
	}
	return id, nil
}
