package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTotalsFromUnitPrice(t *testing.T) {
	got := ComputeTotalsFromUnitPrice(1000, 5000)
	require.Equal(t, Totals{Supply: 5_000_000, VAT: 500_000, Total: 5_500_000}, got)
}

func TestComputeTotalsItemized(t *testing.T) {
	got := ComputeTotalsFromCosts(map[string]Money{
		"cover_ctp_cost":   100_000,
		"cover_print_cost": 200_000,
		"binding_cost":     50_000,
	})
	require.Equal(t, Totals{Supply: 350_000, VAT: 35_000, Total: 385_000}, got)
}

func TestComputeTotalsIgnoresNegativeAndUnknown(t *testing.T) {
	got := ComputeTotalsFromCosts(map[string]Money{
		"film":        -10_000,
		"delivery":    20_000,
		"not_an_item": 999_999,
	})
	require.Equal(t, Money(20_000), got.Supply)
	require.Equal(t, Money(2_000), got.VAT)
}

func TestComputeTotalsConsistency(t *testing.T) {
	for supply := Money(0); supply < 500; supply++ {
		var lines Lines
		lines[Misc].Cost = supply
		got := ComputeTotals(lines)
		require.Equal(t, supply, got.Supply)
		require.Equal(t, got.Supply+got.VAT, got.Total)
		require.Equal(t, VAT(supply), got.VAT)
	}
}

func TestComputeTotalsSumsAllItems(t *testing.T) {
	var lines Lines
	var want Money
	for idx, item := range Items() {
		cost := Money(idx+1) * 1000
		lines[item].Cost = cost
		want += cost
	}
	require.Equal(t, want, ComputeTotals(lines).Supply)
}

func TestVATRoundsHalfToEven(t *testing.T) {
	cases := map[Money]Money{
		0:   0,
		4:   0,
		5:   0,
		6:   1,
		14:  1,
		15:  2,
		25:  2,
		35:  4,
		100: 10,
	}
	for supply, want := range cases {
		require.Equal(t, want, VAT(supply), "supply %d", supply)
	}
}

func TestQuotePrecedence(t *testing.T) {
	var lines Lines
	lines[CoverCTP].Cost = 100_000

	totals, mode := Quote(1000, 5000, lines)
	require.Equal(t, ModeUnitPrice, mode)
	require.Equal(t, Money(5_000_000), totals.Supply)

	totals, mode = Quote(1000, 0, lines)
	require.Equal(t, ModeItemized, mode)
	require.Equal(t, Money(100_000), totals.Supply)

	totals, mode = Quote(0, 5000, lines)
	require.Equal(t, ModeItemized, mode)
	require.Equal(t, Money(100_000), totals.Supply)
}

func TestEffectiveTotal(t *testing.T) {
	ptr := func(v Money) *Money { return &v }
	require.Equal(t, Money(385_000), EffectiveTotal(nil, 385_000))
	require.Equal(t, Money(385_000), EffectiveTotal(ptr(0), 385_000))
	require.Equal(t, Money(385_000), EffectiveTotal(ptr(-5), 385_000))
	require.Equal(t, Money(400_000), EffectiveTotal(ptr(400_000), 385_000))
	require.Equal(t, Money(0), EffectiveTotal(nil, 0))
}

func TestNormalizeOverride(t *testing.T) {
	ptr := func(v Money) *Money { return &v }
	require.Nil(t, NormalizeOverride(nil))
	require.Nil(t, NormalizeOverride(ptr(0)))
	require.Equal(t, Money(-100), *NormalizeOverride(ptr(-100)))
	require.Equal(t, Money(400_000), *NormalizeOverride(ptr(400_000)))
}

func TestLinesJSON(t *testing.T) {
	var lines Lines
	body := `{"cover_ctp": {"unit": "12", "cost": 100000}, "inner2_paper": {"cost": "x"}, "bogus": {"cost": 1}}`
	require.NoError(t, json.Unmarshal([]byte(body), &lines))
	require.Equal(t, Line{Unit: 12, Cost: 100_000}, lines[CoverCTP])
	require.True(t, lines[Inner2Paper].IsZero())
	require.False(t, lines.UsesInnerSecond())

	encoded, err := json.Marshal(lines)
	require.NoError(t, err)
	var decoded map[string]Line
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Len(t, decoded, ItemCount)
	require.Equal(t, Money(100_000), decoded["cover_ctp"].Cost)
}

func TestLinesActive(t *testing.T) {
	var lines Lines
	lines[Binding] = Line{Unit: 300, Cost: 50_000}
	lines[Inner2Print].Cost = 1

	active := lines.Active()
	require.Len(t, active, 2)
	require.Equal(t, "inner2_print", active[0].Item)
	require.Equal(t, SectionInner2, active[0].Section)
	require.Equal(t, "binding", active[1].Item)
	require.True(t, lines.UsesInnerSecond())
}

func TestItemKeys(t *testing.T) {
	require.Equal(t, 17, ItemCount)
	for _, item := range Items() {
		parsed, ok := ParseItem(item.Key())
		require.True(t, ok)
		require.Equal(t, item, parsed)
	}
	_, ok := ParseItem("unknown")
	require.False(t, ok)
}
