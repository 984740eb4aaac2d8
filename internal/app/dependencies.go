// Package app assembles the HTTP surface from the domain packages.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/offset-orders/internal/auth"
	"github.com/noah-isme/offset-orders/internal/config"
	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/ratelimit"
	"github.com/noah-isme/offset-orders/internal/store"
)

// Dependencies enumerates the services shared across route groups.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Store       *store.DB
	Redis       *redis.Client
	Auth        *auth.Service
	Limiter     ratelimit.Limiter
	HTTPMetrics *obs.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Tracing     bool
	// Now overrides the clock used for default order dates.
	Now func() time.Time
}

// NewRedis connects the optional Redis client. An empty URL yields a nil
// client and no error.
func NewRedis(ctx context.Context, url string, instrumentMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if instrumentMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter picks the Redis sliding window when a client is available and
// the in-process store otherwise.
func NewLimiter(rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.RedisLimiter{Client: rdb, Prefix: "ratelimit:login:"}
	}
	return ratelimit.NewMemoryLimiter("login")
}

// NewAuthService builds the password gate from configuration.
func NewAuthService(cfg *config.Config) (*auth.Service, error) {
	return auth.NewService(auth.Config{
		Password:     cfg.AppPassword,
		PasswordHash: cfg.AppPasswordHash,
		Secret:       cfg.SessionSecret,
		SessionTTL:   cfg.SessionTTL,
	})
}
