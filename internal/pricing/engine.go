// Package pricing computes order supply price, VAT and totals for offset
// print runs, and resolves the displayed total when a manual override exists.
package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in whole currency units.
type Money = int64

// VATRateBps is the fixed VAT rate in basis points (10%).
const VATRateBps = 1000

// Totals aggregates the derived pricing fields stored on an order.
type Totals struct {
	Supply Money `json:"supply_price"`
	VAT    Money `json:"vat_price"`
	Total  Money `json:"total_price"`
}

// Mode names the pricing path that produced a Totals value.
type Mode string

const (
	ModeUnitPrice Mode = "unit_price"
	ModeItemized  Mode = "itemized"
)

// VAT returns supply x 10% rounded to the nearest integer, ties to even.
func VAT(supply Money) Money {
	v := decimal.NewFromInt(supply).
		Mul(decimal.New(VATRateBps, -4)).
		RoundBank(0)
	return v.IntPart()
}

func fromSupply(supply Money) Totals {
	vat := VAT(supply)
	return Totals{Supply: supply, VAT: vat, Total: supply + vat}
}

// ComputeTotals sums the itemized costs. Negative costs count as zero.
func ComputeTotals(lines Lines) Totals {
	var supply Money
	for _, l := range lines {
		if l.Cost > 0 {
			supply += l.Cost
		}
	}
	return fromSupply(supply)
}

// ComputeTotalsFromCosts is ComputeTotals over a mapping keyed by item name
// ("cover_ctp", "binding", ...). Missing and unknown keys are ignored.
func ComputeTotalsFromCosts(costs map[string]Money) Totals {
	var lines Lines
	for key, cost := range costs {
		item, ok := ParseItem(key)
		if !ok {
			continue
		}
		lines[item].Cost = cost
	}
	return ComputeTotals(lines)
}

// ComputeTotalsFromUnitPrice prices a run at qty x unitPrice.
func ComputeTotalsFromUnitPrice(qty, unitPrice Money) Totals {
	if qty <= 0 || unitPrice <= 0 {
		return fromSupply(0)
	}
	return fromSupply(qty * unitPrice)
}

// SelectMode reports which pricing path applies. A positive unit price with a
// positive quantity wins over itemized costs.
func SelectMode(qty, unitPrice Money) Mode {
	if unitPrice > 0 && qty > 0 {
		return ModeUnitPrice
	}
	return ModeItemized
}

// Quote applies the pricing precedence rule. Itemized lines are ignored for
// the totals in unit price mode.
func Quote(qty, unitPrice Money, lines Lines) (Totals, Mode) {
	mode := SelectMode(qty, unitPrice)
	if mode == ModeUnitPrice {
		return ComputeTotalsFromUnitPrice(qty, unitPrice), mode
	}
	return ComputeTotals(lines), mode
}

// EffectiveTotal is the total to display: a positive override wins, the
// computed total otherwise.
func EffectiveTotal(override *Money, total Money) Money {
	if override != nil && *override > 0 {
		return *override
	}
	return total
}

// NormalizeOverride clears absent or zero overrides. Any other value,
// negative included, is kept as given.
func NormalizeOverride(v *Money) *Money {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}
