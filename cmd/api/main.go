package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/offset-orders/internal/app"
	"github.com/noah-isme/offset-orders/internal/config"
	"github.com/noah-isme/offset-orders/internal/health"
	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.EnableTracing
	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       tracingEnabled,
		ServiceName:   "offset-orders",
		Endpoint:      cfg.Obs.OTLPEndpoint,
		Exporter:      cfg.Obs.TracingExporter,
		SamplingRatio: cfg.Obs.SamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	db, err := store.Open(ctx, store.Options{
		Backend:         cfg.StoreBackend,
		PostgresDSN:     cfg.PostgresDSN(),
		SQLitePath:      cfg.SQLitePath,
		ConnectTimeout:  cfg.StoreConnectTimeout,
		ApplicationName: "offset-orders",
		Tracer:          obs.PGXTracer{},
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()
	if err := store.Prepare(ctx, db); err != nil {
		logger.Fatal().Err(err).Str("backend", string(db.Dialect())).Msg("prepare store")
	}
	obs.SetStoreBackend(string(db.Dialect()), store.Dialects()...)

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, cfg.Obs.EnablePrometheus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
		logger.Warn().Msg("SESSION_SECRET not set; sessions will not survive a restart")
	}
	authService, err := app.NewAuthService(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	deps := app.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Store:   db,
		Redis:   redisClient,
		Auth:    authService,
		Limiter: app.NewLimiter(redisClient),
		Tracing: tracingEnabled,
	}
	if cfg.Obs.EnablePrometheus {
		deps.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
		deps.Gatherer = prometheus.DefaultGatherer
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           app.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("backend", string(db.Dialect())).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
