package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/offset-orders/internal/common"
)

// DefaultCSRFName is used for both the CSRF header and its companion cookie.
const DefaultCSRFName = "X-CSRF-Token"

// CSRF protects cookie-authenticated writes using the double-submit technique.
type CSRF struct {
	Header string
}

// Name reports the header and cookie name in use.
func (c CSRF) Name() string {
	if name := strings.TrimSpace(c.Header); name != "" {
		return name
	}
	return DefaultCSRFName
}

// Middleware enforces that non-idempotent requests include a CSRF token header
// matching the cookie. Bearer-authenticated requests are exempt because
// browsers never attach them automatically.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := c.Name()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(name))
		if token == "" {
			forbidden(w, "missing csrf token")
			return
		}

		cookie, err := r.Cookie(name)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			forbidden(w, "missing csrf cookie")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(strings.TrimSpace(cookie.Value))) != 1 {
			forbidden(w, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func forbidden(w http.ResponseWriter, message string) {
	common.JSONError(w, http.StatusForbidden, "CSRF_REJECTED", message, nil)
}
