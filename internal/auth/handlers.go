package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/offset-orders/internal/common"
	"github.com/noah-isme/offset-orders/internal/obs"
)

// DefaultSessionCookie names the cookie carrying the session token.
const DefaultSessionCookie = "offset_session"

// Handler exposes the login gate endpoints.
type Handler struct {
	Service        *Service
	Logger         zerolog.Logger
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	// CSRFCookieName, when set, names a script-readable cookie holding a
	// double-submit token issued alongside the session.
	CSRFCookieName string
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Password)
	if err != nil {
		obs.RecordLogin("failure")
		h.Logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("login rejected")
		h.writeError(w, err)
		return
	}
	obs.RecordLogin("success")
	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	h.setCSRFCookie(w, result.ExpiresAt)
	common.Data(w, http.StatusOK, result)
}

// Logout handles POST /api/v1/auth/logout. Sessions are stateless so the
// cookie is simply cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	if h.CSRFCookieName != "" {
		http.SetCookie(w, &http.Cookie{Name: h.CSRFCookieName, Path: "/", Domain: h.CookieDomain, MaxAge: -1, Secure: h.CookieSecure, SameSite: h.CookieSameSite})
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session and must sit behind RequireAuth.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := common.SessionFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	common.Data(w, http.StatusOK, session)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	h.Logger.Error().Err(err).Msg("auth handler failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func (h *Handler) cookieName() string {
	if h.CookieName == "" {
		return DefaultSessionCookie
	}
	return h.CookieName
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, expiresAt time.Time) {
	if h.CSRFCookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CSRFCookieName,
		Value:    uuid.NewString(),
		Path:     "/",
		Domain:   h.CookieDomain,
		Expires:  expiresAt,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}
