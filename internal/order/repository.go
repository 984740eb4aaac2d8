package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/pricing"
	"github.com/noah-isme/offset-orders/internal/store"
)

var (
	lineColumns   = buildLineColumns()
	selectColumns = buildSelectColumns()
	insertSQL     = buildInsertSQL()
)

func buildLineColumns() []string {
	cols := make([]string, 0, pricing.ItemCount*2)
	for _, item := range pricing.Items() {
		cols = append(cols, item.Key()+"_unit", item.Key()+"_cost")
	}
	return cols
}

func buildSelectColumns() string {
	cols := []string{
		"id", "book_id", "qty", "date",
		"COALESCE(vendor, '')", "COALESCE(unit_price, 0)", "COALESCE(invoice_issued, 0)",
		"total_override", "COALESCE(memo, '')",
		"COALESCE(supply_price, 0)", "COALESCE(vat_price, 0)", "COALESCE(total_price, 0)",
	}
	for _, c := range lineColumns {
		cols = append(cols, "COALESCE("+c+", 0)")
	}
	return strings.Join(cols, ", ")
}

func buildInsertSQL() string {
	cols := append([]string{
		"book_id", "qty", "date", "vendor", "unit_price", "invoice_issued",
		"total_override", "memo", "supply_price", "vat_price", "total_price",
	}, lineColumns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT INTO orders (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ") RETURNING id"
}

// Repository persists orders.
type Repository struct {
	db    *store.DB
	now   func() time.Time
	cache *SummaryCache
}

// Option customises a Repository.
type Option func(*Repository)

// WithNow overrides the clock used to default order dates.
func WithNow(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSummaryCache invalidates cached summaries whenever orders change.
func WithSummaryCache(cache *SummaryCache) Option {
	return func(r *Repository) { r.cache = cache }
}

// NewRepository constructs a Repository over db.
func NewRepository(db *store.DB, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create prices and stores a new order and returns its id. Input numbers are
// coerced, never rejected. Itemized lines are stored even when the unit price
// decides the totals. An empty date defaults to today.
func (r *Repository) Create(ctx context.Context, in Input) (int64, error) {
	qty := in.Qty.Value
	unitPrice := in.UnitPrice.Value
	lines := in.Lines.Clamped()
	totals, mode := pricing.Quote(qty, unitPrice, lines)

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = r.now().Format(DateLayout)
	}

	args := make([]any, 0, 11+len(lineColumns))
	args = append(args,
		in.BookID.Value, qty, date, strings.TrimSpace(in.Vendor), unitPrice, 0,
		nil, "", totals.Supply, totals.VAT, totals.Total,
	)
	for _, l := range lines {
		args = append(args, l.Unit, l.Cost)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, insertSQL, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	obs.RecordOrderCreated(string(mode))
	r.invalidate(ctx)
	return id, nil
}

// List returns the orders of a book, newest first. A positive qty narrows the
// result to orders of exactly that quantity.
func (r *Repository) List(ctx context.Context, bookID, qty int64) ([]Order, error) {
	query := `SELECT ` + selectColumns + ` FROM orders WHERE book_id = ?`
	args := []any{bookID}
	if qty > 0 {
		query += ` AND qty = ?`
		args = append(args, qty)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns a single order or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	if id < 1 {
		return Order{}, ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// Delete removes an order. Unknown ids are ignored.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.mutate(ctx, "delete", id, `DELETE FROM orders WHERE id = ?`)
}

// SetInvoiceStatus records whether the invoice was issued. Unknown ids are ignored.
func (r *Repository) SetInvoiceStatus(ctx context.Context, id int64, issued bool) error {
	flag := 0
	if issued {
		flag = 1
	}
	return r.mutate(ctx, "invoice", id, `UPDATE orders SET invoice_issued = ? WHERE id = ?`, flag)
}

// SetOverrideAndMemo stores the manual total and memo. A nil or zero override
// clears it and the memo is trimmed, nil meaning empty. Unknown ids are ignored.
func (r *Repository) SetOverrideAndMemo(ctx context.Context, id int64, override *int64, memo *string) error {
	text := ""
	if memo != nil {
		text = strings.TrimSpace(*memo)
	}
	var value any
	if v := pricing.NormalizeOverride(override); v != nil {
		value = *v
	}
	return r.mutate(ctx, "override", id, `UPDATE orders SET total_override = ?, memo = ? WHERE id = ?`, value, text)
}

// mutate runs a single-row statement whose last placeholder is the order id.
func (r *Repository) mutate(ctx context.Context, op string, id int64, query string, args ...any) error {
	if id < 1 {
		return nil
	}
	res, err := r.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return fmt.Errorf("%s order %d: %w", op, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		obs.RecordOrderMutation(op)
		r.invalidate(ctx)
	}
	return nil
}

func (r *Repository) invalidate(ctx context.Context) {
	if r.cache != nil {
		r.cache.Invalidate(ctx)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o        Order
		issued   int64
		override sql.NullInt64
	)
	dest := []any{
		&o.ID, &o.BookID, &o.Qty, &o.Date,
		&o.Vendor, &o.UnitPrice, &issued, &override, &o.Memo,
		&o.Supply, &o.VAT, &o.Total,
	}
	for idx := range o.Lines {
		dest = append(dest, &o.Lines[idx].Unit, &o.Lines[idx].Cost)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.InvoiceIssued = issued != 0
	if override.Valid {
		o.TotalOverride = &override.Int64
	}
	return o, nil
}
