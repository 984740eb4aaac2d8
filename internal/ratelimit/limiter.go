// Package ratelimit throttles requests per key over a time window. Redis
// backs the limiter when configured; otherwise counters live in process.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Limiter records an event for key and reports whether it fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// MemoryLimiter keeps fixed-window counters in process memory.
type MemoryLimiter struct {
	store  limiter.Store
	prefix string
}

// NewMemoryLimiter returns a limiter backed by ulule's in-memory store.
func NewMemoryLimiter(prefix string) *MemoryLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &MemoryLimiter{
		store:  memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}),
		prefix: prefix,
	}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(m.store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

// ClientIP keys requests by remote address. RealIP should run first when the
// service sits behind a proxy.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
