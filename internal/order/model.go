// Package order records production purchase orders for a book and prices them
// through the pricing engine.
package order

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/noah-isme/offset-orders/internal/common"
	"github.com/noah-isme/offset-orders/internal/pricing"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// DateLayout is the format of Order.Date.
const DateLayout = "2006-01-02"

// Order is a stored purchase order. Supply, VAT and Total are fixed at
// creation; only the invoice flag, override and memo change afterwards.
type Order struct {
	ID            int64  `json:"id"`
	BookID        int64  `json:"book_id"`
	Qty           int64  `json:"qty"`
	Date          string `json:"date"`
	Vendor        string `json:"vendor"`
	UnitPrice     int64  `json:"unit_price"`
	InvoiceIssued bool   `json:"invoice_issued"`
	// TotalOverride is the manually entered total, nil when not set.
	TotalOverride *int64 `json:"total_override"`
	Memo          string `json:"memo"`
	pricing.Totals
	Lines pricing.Lines `json:"lines"`
}

// EffectiveTotal is the total shown to the operator.
func (o Order) EffectiveTotal() int64 {
	return pricing.EffectiveTotal(o.TotalOverride, o.Total)
}

// Mode reports which pricing path produced the stored totals.
func (o Order) Mode() pricing.Mode {
	return pricing.SelectMode(o.Qty, o.UnitPrice)
}

// MarshalJSON adds the derived display fields.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		PricingMode    pricing.Mode         `json:"pricing_mode"`
		EffectiveTotal int64                `json:"effective_total"`
		LineItems      []pricing.ActiveLine `json:"line_items"`
	}{
		plain:          plain(o),
		PricingMode:    o.Mode(),
		EffectiveTotal: o.EffectiveTotal(),
		LineItems:      o.Lines.Active(),
	})
}

// Input is the loosely typed payload of a new order. Numbers may arrive as
// strings and anything unparseable counts as zero. Itemized lines are read from
// a nested "lines" object and from flat "<item>_unit"/"<item>_cost" keys.
type Input struct {
	BookID    common.LooseInt `json:"book_id"`
	Qty       common.LooseInt `json:"qty"`
	Date      string          `json:"date"`
	Vendor    string          `json:"vendor"`
	UnitPrice common.LooseInt `json:"unit_price"`
	Lines     pricing.Lines   `json:"lines"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	type plain Input
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	for key, raw := range flat {
		var field string
		switch {
		case strings.HasSuffix(key, "_unit"):
			field = "unit"
		case strings.HasSuffix(key, "_cost"):
			field = "cost"
		default:
			continue
		}
		item, ok := pricing.ParseItem(strings.TrimSuffix(strings.TrimSuffix(key, "_unit"), "_cost"))
		if !ok {
			continue
		}
		var v common.LooseInt
		_ = v.UnmarshalJSON(raw)
		if field == "unit" {
			base.Lines[item].Unit = v.Value
		} else {
			base.Lines[item].Cost = v.Value
		}
	}
	*in = Input(base)
	return nil
}

// Quote prices the input without storing it.
func (in Input) Quote() (pricing.Totals, pricing.Mode) {
	return pricing.Quote(in.Qty.Value, in.UnitPrice.Value, in.Lines.Clamped())
}
