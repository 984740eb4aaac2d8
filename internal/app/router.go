package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/noah-isme/offset-orders/internal/auth"
	"github.com/noah-isme/offset-orders/internal/catalog"
	"github.com/noah-isme/offset-orders/internal/health"
	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/order"
	"github.com/noah-isme/offset-orders/internal/ratelimit"
	"github.com/noah-isme/offset-orders/internal/security"
)

// NewRouter wires middleware, health, metrics and the versioned API.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if deps.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if deps.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: deps.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", security.DefaultCSRFName},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.CookieSecure}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}.Middleware)

	if deps.Gatherer != nil {
		r.Handle("/metrics", obs.MetricsHandler(deps.Gatherer))
	}

	healthHandler := health.Handler{
		Checker: health.Deps{DB: deps.Store, Redis: deps.Redis},
		Backend: string(deps.Store.Dialect()),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	csrf := security.CSRF{}
	authHandler := &auth.Handler{
		Service:        deps.Auth,
		Logger:         logger,
		CookieName:     cfg.CookieName,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}
	if cfg.CSRFEnabled {
		authHandler.CSRFCookieName = csrf.Name()
	}
	authMiddleware := auth.Middleware{Service: deps.Auth, SessionCookie: authHandler.CookieName}
	loginLimit := ratelimit.Handler{
		Limiter: deps.Limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ClientIP,
			Window: cfg.LoginRateLimitWindow,
			Max:    cfg.LoginRateLimitMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
	}

	var orderOpts []order.Option
	summaryCache := order.NewSummaryCache(deps.Redis, cfg.SummaryCacheTTL)
	if summaryCache != nil {
		orderOpts = append(orderOpts, order.WithSummaryCache(summaryCache))
	}
	if deps.Now != nil {
		orderOpts = append(orderOpts, order.WithNow(deps.Now))
	}
	books := catalog.NewHandler(catalog.HandlerConfig{
		Repository: catalog.NewRepository(deps.Store),
		Logger:     logger,
	})
	orders := order.NewHandler(order.HandlerConfig{
		Repository: order.NewRepository(deps.Store, orderOpts...),
		Cache:      summaryCache,
		Logger:     logger,
	})

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireAuth).Get("/session", authHandler.Session)
		})

		v.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			if cfg.CSRFEnabled {
				protected.Use(csrf.Middleware)
			}
			protected.Use(middleware.Timeout(30 * time.Second))
			books.Routes(protected)
			orders.Routes(protected)
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
