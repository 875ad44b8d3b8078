package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mahaj/lionsphere/pkg/apperr"
)

type contextKey string

const UserKey contextKey = "user"

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func BearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return strings.TrimPrefix(token, "Bearer ")
}

// Middleware rejects requests without a valid token and stores the claims in
// the request context.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := BearerToken(r)
		if tokenString == "" {
			apperr.Write(w, apperr.Unauthorized("authorization header required"))
			return
		}

		claims, err := i.ValidateToken(tokenString)
		if err != nil {
			apperr.Write(w, apperr.Unauthorized("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, UserKey, c)
}

// UserID returns the authenticated user of ctx, or "" when there is none.
func UserID(ctx context.Context) string {
	c, ok := ctx.Value(UserKey).(*Claims)
	if !ok {
		return ""
	}
	return c.UserID
}
