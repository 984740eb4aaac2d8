package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Summary aggregates the orders of one book.
type Summary struct {
	BookID          int64 `json:"book_id"`
	Count           int   `json:"order_count"`
	Quantity        int64 `json:"total_qty"`
	Supply          int64 `json:"supply_price"`
	VAT             int64 `json:"vat_price"`
	Total           int64 `json:"total_price"`
	EffectiveTotal  int64 `json:"effective_total"`
	OverriddenCount int   `json:"overridden_count"`
	InvoicedCount   int   `json:"invoiced_count"`
	InvoicedTotal   int64 `json:"invoiced_total"`
	PendingTotal    int64 `json:"pending_total"`
}

// Summarize totals orders. Invoiced and pending amounts use the effective
// total, so manual overrides are reflected there but not in Total.
func Summarize(orders []Order) Summary {
	var s Summary
	for _, o := range orders {
		s.Count++
		s.Quantity += o.Qty
		s.Supply += o.Supply
		s.VAT += o.VAT
		s.Total += o.Total

		effective := o.EffectiveTotal()
		s.EffectiveTotal += effective
		if effective != o.Total {
			s.OverriddenCount++
		}
		if o.InvoiceIssued {
			s.InvoicedCount++
			s.InvoicedTotal += effective
		} else {
			s.PendingTotal += effective
		}
	}
	return s
}

const summaryGenerationKey = "orders:summary:gen"

// SummaryCache keeps computed summaries in Redis. Any order write bumps a
// generation counter so stale entries are never read again; they expire by TTL.
type SummaryCache struct {
	R   *redis.Client
	TTL time.Duration
}

// NewSummaryCache returns nil when rdb is nil so callers can pass it through.
func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if rdb == nil {
		return nil
	}
	return &SummaryCache{R: rdb, TTL: ttl}
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.R != nil && c.TTL > 0
}

func (c *SummaryCache) key(ctx context.Context, bookID, qty int64) (string, bool) {
	gen, err := c.R.Get(ctx, summaryGenerationKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return fmt.Sprintf("orders:summary:%d:%d:%d", gen, bookID, qty), true
}

// Get returns a cached summary.
func (c *SummaryCache) Get(ctx context.Context, bookID, qty int64) (Summary, bool) {
	if !c.enabled() {
		return Summary{}, false
	}
	key, ok := c.key(ctx, bookID, qty)
	if !ok {
		return Summary{}, false
	}
	data, err := c.R.Get(ctx, key).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

// Set stores a summary. Failures are ignored.
func (c *SummaryCache) Set(ctx context.Context, bookID, qty int64, s Summary) {
	if !c.enabled() {
		return
	}
	key, ok := c.key(ctx, bookID, qty)
	if !ok {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.R.Set(ctx, key, data, c.TTL).Err()
}

// Invalidate drops every cached summary.
func (c *SummaryCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	_ = c.R.Incr(ctx, summaryGenerationKey).Err()
}
