package common

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AtoiDefault converts the provided string to an integer falling back to the default when parsing fails.
func AtoiDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// ParseID parses a positive integer identifier. Zero is returned for anything else.
func ParseID(value string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// CoerceInt normalises loosely typed input into an integer. Parse failures,
// fractional numbers and unsupported types all become 0; it never fails.
func CoerceInt(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0
		}
		if t > math.MaxInt64 || t < math.MinInt64 {
			return 0
		}
		return int64(t)
	case json.Number:
		return CoerceInt(string(t))
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// NonNegative clamps negative values to zero.
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// LooseInt is a JSON integer that tolerates strings, floats and garbage.
// Set reports whether a non-empty value was supplied; null and "" leave it unset.
type LooseInt struct {
	Value int64
	Set   bool
}

// Int returns a set LooseInt holding v.
func Int(v int64) LooseInt {
	return LooseInt{Value: v, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (l *LooseInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = LooseInt{}
		return nil
	}
	var raw any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		*l = LooseInt{Set: true}
		return nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		*l = LooseInt{}
		return nil
	}
	if n, ok := raw.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			*l = LooseInt{Value: i, Set: true}
			return nil
		}
		f, err := n.Float64()
		if err != nil {
			*l = LooseInt{Set: true}
			return nil
		}
		raw = f
	}
	*l = LooseInt{Value: CoerceInt(raw), Set: true}
	return nil
}

// MarshalJSON renders the value, or null when unset.
func (l LooseInt) MarshalJSON() ([]byte, error) {
	if !l.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(l.Value, 10)), nil
}

// Ptr returns a pointer to the value, or nil when unset.
func (l LooseInt) Ptr() *int64 {
	if !l.Set {
		return nil
	}
	v := l.Value
	return &v
}
