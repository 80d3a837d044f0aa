package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AsFloat coerces a cell to float64. Non-coercible values report ok=false,
// which rule predicates treat as "no match", never as an error.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsText coerces a cell to its textual form. Missing values (nil, empty
// string) report ok=false.
func AsText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		if x == "" {
			return "", false
		}
		return x, true
	case json.Number:
		return x.String(), true
	default:
		return fmt.Sprintf("%v", x), true
	}
}

// AsBool coerces a cell to bool, falling back to def for absent or
// unrecognizable values.
func AsBool(v any, def bool) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		}
		return def
	case nil:
		return def
	default:
		if f, ok := AsFloat(v); ok {
			return f != 0
		}
		return def
	}
}
