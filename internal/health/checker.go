package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/offset-orders/internal/store"
)

// Deps probes the live store and, when configured, Redis.
type Deps struct {
	DB    *store.DB
	Redis *redis.Client
}

// PingDB implements Checker.
func (d Deps) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements Checker. A missing client counts as healthy since
// Redis is optional.
func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}
