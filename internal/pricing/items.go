package pricing

import (
	"encoding/json"
	"strings"

	"github.com/noah-isme/offset-orders/internal/common"
)

// Item identifies one of the itemized production cost lines.
type Item int

const (
	CoverCTP Item = iota
	CoverPrint
	CoverPaper
	Inner1CTP
	Inner1Print
	Inner1Paper
	Inner2CTP
	Inner2Print
	Inner2Paper
	Endpaper
	Binding
	Laminating
	Epoxy
	Plate
	Film
	Misc
	Delivery

	ItemCount = int(Delivery) + 1
)

// Section groups items the way the order sheet does.
type Section string

const (
	SectionCover       Section = "cover"
	SectionInner1      Section = "inner1"
	SectionInner2      Section = "inner2"
	SectionEndpaper    Section = "endpaper"
	SectionBinding     Section = "binding"
	SectionPostprocess Section = "postprocess"
	SectionMisc        Section = "misc"
)

var itemKeys = [ItemCount]string{
	"cover_ctp", "cover_print", "cover_paper",
	"inner1_ctp", "inner1_print", "inner1_paper",
	"inner2_ctp", "inner2_print", "inner2_paper",
	"endpaper", "binding",
	"laminating", "epoxy", "plate", "film",
	"misc", "delivery",
}

var itemSections = [ItemCount]Section{
	SectionCover, SectionCover, SectionCover,
	SectionInner1, SectionInner1, SectionInner1,
	SectionInner2, SectionInner2, SectionInner2,
	SectionEndpaper, SectionBinding,
	SectionPostprocess, SectionPostprocess, SectionPostprocess, SectionPostprocess,
	SectionMisc, SectionMisc,
}

// Items lists every item in column order.
func Items() []Item {
	out := make([]Item, ItemCount)
	for i := range out {
		out[i] = Item(i)
	}
	return out
}

// Key returns the storage key, e.g. "cover_ctp". Columns are Key()+"_unit"/"_cost".
func (i Item) Key() string {
	if i < 0 || int(i) >= ItemCount {
		return ""
	}
	return itemKeys[i]
}

// Section returns the order sheet section the item belongs to.
func (i Item) Section() Section {
	if i < 0 || int(i) >= ItemCount {
		return ""
	}
	return itemSections[i]
}

func (i Item) String() string { return i.Key() }

// ParseItem resolves a storage key. A trailing "_cost" is accepted.
func ParseItem(key string) (Item, bool) {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "_cost")
	for idx, k := range itemKeys {
		if k == key {
			return Item(idx), true
		}
	}
	return 0, false
}

// Line is the unit price and cost recorded for one item.
type Line struct {
	Unit Money `json:"unit"`
	Cost Money `json:"cost"`
}

// IsZero reports whether nothing was recorded for the line.
func (l Line) IsZero() bool { return l.Unit == 0 && l.Cost == 0 }

// Lines holds every itemized line indexed by Item.
type Lines [ItemCount]Line

// ActiveLine is a non-empty line with its identity attached.
type ActiveLine struct {
	Item    string  `json:"item"`
	Section Section `json:"section"`
	Unit    Money   `json:"unit"`
	Cost    Money   `json:"cost"`
}

// Active returns the lines where a unit or cost was recorded, in column order.
func (ls Lines) Active() []ActiveLine {
	out := make([]ActiveLine, 0, ItemCount)
	for idx, l := range ls {
		if l.IsZero() {
			continue
		}
		item := Item(idx)
		out = append(out, ActiveLine{Item: item.Key(), Section: item.Section(), Unit: l.Unit, Cost: l.Cost})
	}
	return out
}

// UsesInnerSecond reports whether the optional second inner section carries cost.
func (ls Lines) UsesInnerSecond() bool {
	return ls[Inner2CTP].Cost != 0 || ls[Inner2Print].Cost != 0 || ls[Inner2Paper].Cost != 0
}

// Clamped returns a copy with negative units and costs set to zero.
func (ls Lines) Clamped() Lines {
	out := ls
	for idx := range out {
		out[idx].Unit = common.NonNegative(out[idx].Unit)
		out[idx].Cost = common.NonNegative(out[idx].Cost)
	}
	return out
}

// MarshalJSON renders the lines as an object keyed by item name.
func (ls Lines) MarshalJSON() ([]byte, error) {
	out := make(map[string]Line, ItemCount)
	for idx, l := range ls {
		out[itemKeys[idx]] = l
	}
	return json.Marshal(out)
}

type looseLine struct {
	Unit common.LooseInt `json:"unit"`
	Cost common.LooseInt `json:"cost"`
}

// UnmarshalJSON reads an object keyed by item name. Unknown keys are skipped and
// malformed numbers coerce to zero.
func (ls *Lines) UnmarshalJSON(data []byte) error {
	var raw map[string]looseLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Lines
	for key, l := range raw {
		item, ok := ParseItem(key)
		if !ok {
			continue
		}
		out[item] = Line{Unit: l.Unit.Value, Cost: l.Cost.Value}
	}
	*ls = out
	return nil
}
