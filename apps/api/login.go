package main

import (
	"net/http"

	"github.com/mahaj/lionsphere/pkg/apperr"
	"github.com/mahaj/lionsphere/pkg/chat"
	"github.com/mahaj/lionsphere/pkg/model"
)

type LoginRequest struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// login issues a token for the caller and records their display profile.
// Identity itself is owned by the platform; this endpoint trusts user_id.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !chat.ValidUserID(req.UserID) {
		s.fail(w, r, apperr.ErrInvalidUserID)
		return
	}

	// a bare login keeps whatever profile is already stored
	if req.Username != "" || req.AvatarURL != "" {
		if err := s.chat.SaveProfile(r.Context(), model.UserSummary{
			UserID:    req.UserID,
			Username:  req.Username,
			AvatarURL: req.AvatarURL,
		}); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	token, err := s.issuer.GenerateToken(req.UserID)
	if err != nil {
		s.fail(w, r, apperr.Internal("issue token", err))
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, UserID: req.UserID})
}
