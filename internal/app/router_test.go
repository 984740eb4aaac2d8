package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/offset-orders/internal/app"
	"github.com/noah-isme/offset-orders/internal/config"
	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/store"
)

const password = "press-room"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Backend: store.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "app.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Prepare(ctx, db))

	cfg := &config.Config{
		AppPassword:          password,
		SessionSecret:        "router-test-secret",
		SessionTTL:           time.Hour,
		CookieName:           "offset_session",
		CookieSameSite:       http.SameSiteLaxMode,
		CSRFEnabled:          true,
		SummaryCacheTTL:      time.Minute,
		LoginRateLimitMax:    3,
		LoginRateLimitWindow: time.Minute,
		HTTPBodyLimitBytes:   1 << 16,
	}
	authSvc, err := app.NewAuthService(cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return app.NewRouter(app.Dependencies{
		Config:      cfg,
		Logger:      zerolog.Nop(),
		Store:       db,
		Auth:        authSvc,
		Limiter:     app.NewLimiter(nil),
		HTTPMetrics: obs.NewHTTPMetrics("apptest", nil, reg),
		Gatherer:    reg,
		Now:         func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) },
	})
}

func send(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := send(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeData(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRouterOrderLifecycle(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h)

	rec := send(t, h, http.MethodPost, "/api/v1/books", token, `{"title":"Field Guide","format":"A5","total_pages":240}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decodeData(t, rec)
	bookID := strconv.Itoa(int(book["id"].(float64)))
	require.EqualValues(t, 240, book["total_pages"])

	rec = send(t, h, http.MethodPost, "/api/v1/books/"+bookID+"/orders", token, `{"qty":1000,"unit_price":5000,"vendor":"Daehan"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData(t, rec)
	require.EqualValues(t, 5000000, created["supply_price"])
	require.EqualValues(t, 500000, created["vat_price"])
	require.EqualValues(t, 5500000, created["total_price"])
	require.Equal(t, "2024-03-09", created["date"])
	orderID := strconv.Itoa(int(created["id"].(float64)))

	rec = send(t, h, http.MethodGet, "/api/v1/books/"+bookID+"/orders/summary", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decodeData(t, rec)["order_count"])

	rec = send(t, h, http.MethodPatch, "/api/v1/orders/"+orderID+"/override", token, `{"total_override":4000000,"memo":"negotiated"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/v1/orders/"+orderID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData(t, rec)
	require.EqualValues(t, 4000000, got["effective_total"])
	require.Equal(t, "negotiated", got["memo"])

	rec = send(t, h, http.MethodDelete, "/api/v1/orders/"+orderID, token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(t, h, http.MethodGet, "/api/v1/orders/"+orderID, token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresSession(t *testing.T) {
	h := newTestServer(t)

	rec := send(t, h, http.MethodGet, "/api/v1/books", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/v1/books", "not-a-token", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterCookieWritesNeedCSRF(t *testing.T) {
	h := newTestServer(t)

	rec := send(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	var session, csrf *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case "offset_session":
			session = c
		case "X-CSRF-Token":
			csrf = c
		}
	}
	require.NotNil(t, session)
	require.NotNil(t, csrf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req.AddCookie(session)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/books", strings.NewReader(`{"title":"Cookie Book"}`))
	req.AddCookie(session)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/books", strings.NewReader(`{"title":"Cookie Book"}`))
	req.AddCookie(session)
	req.AddCookie(csrf)
	req.Header.Set("X-CSRF-Token", csrf.Value)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestRouterLoginRateLimited(t *testing.T) {
	h := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := send(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"wrong"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := send(t, h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"`+password+`"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	rec := send(t, h, http.MethodGet, "/health/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, h, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"backend":"sqlite"`)

	rec = send(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "apptest_http_requests_total")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
