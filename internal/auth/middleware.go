package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/offset-orders/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware wires the operator session into HTTP handlers.
type Middleware struct {
	Service       *Service
	SessionCookie string
}

// RequireAuth enforces that a valid session token is present before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Service == nil {
		return r.Context(), errors.New("auth: service not configured")
	}
	token := m.extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	session, err := m.Service.ParseSessionToken(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithSession(r.Context(), session), nil
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.SessionCookie != "" {
		if cookie, err := r.Cookie(m.SessionCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
