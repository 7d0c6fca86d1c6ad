package tool

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Args wraps decoded tool arguments with lenient accessors.
// Models send numbers as JSON numbers, strings or booleans interchangeably.
type Args map[string]any

// String returns the trimmed string value of key, or def.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	}
	return def
}

// Int returns the integer value of key. Non-numeric values are an
// invalid-arguments error; a missing key yields def.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if i, ok := truncate(n); ok {
			return i, nil
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := n.Float64(); err == nil {
			if i, ok := truncate(f); ok {
				return i, nil
			}
		}
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return def, nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if i, ok := truncate(f); ok {
				return i, nil
			}
		}
	}
	return 0, Errorf(KindInvalidArguments, "invalid literal for %s: %v", key, v)
}

// truncate converts f toward zero, saturating at the int range. NaN is
// rejected.
func truncate(f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(math.Trunc(f)), true
}

// Bool returns the boolean value of key, or def when missing or unparseable.
func (a Args) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
