// Package rules implements the dual-schema AML rule evaluation engine:
// a generic field/operator matcher (legacy schema) and a fixed battery of
// specialized detectors (modern schema), unified behind one entry point
// and one hit schema.
package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// Operator is one comparison predicate of the legacy schema.
type Operator int

const (
	OpGreaterThan Operator = iota
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpEquals
	OpNotEquals
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
)

// operatorNames maps accepted operator spellings (lower case) to their
// predicate. Aliases share an entry.
var operatorNames = map[string]Operator{
	"greater_than":          OpGreaterThan,
	"greater_than_or_equal": OpGreaterThanOrEqual,
	"less_than":             OpLessThan,
	"less_than_or_equal":    OpLessThanOrEqual,
	"equals":                OpEquals,
	"equal":                 OpEquals,
	"not_equals":            OpNotEquals,
	"not_equal":             OpNotEquals,
	"in":                    OpIn,
	"not_in":                OpNotIn,
	"nin":                   OpNotIn,
	"contains":              OpContains,
	"starts_with":           OpStartsWith,
	"ends_with":             OpEndsWith,
}

// ParseOperator resolves a case-insensitive operator name. An unknown
// name fails the whole evaluation.
func ParseOperator(name string) (Operator, error) {
	op, ok := operatorNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedOperator, name)
	}
	return op, nil
}

// Match applies the predicate to one cell. Missing cells (nil) and
// non-coercible cells never match positive comparisons; the negative
// forms (not_equals, not_in) match them, mirroring how an absent column
// compares against a concrete value.
func (op Operator) Match(cell, target any) bool {
	switch op {
	case OpGreaterThan:
		return numericMatch(cell, target, func(a, b float64) bool { return a > b })
	case OpGreaterThanOrEqual:
		return numericMatch(cell, target, func(a, b float64) bool { return a >= b })
	case OpLessThan:
		return numericMatch(cell, target, func(a, b float64) bool { return a < b })
	case OpLessThanOrEqual:
		return numericMatch(cell, target, func(a, b float64) bool { return a <= b })
	case OpEquals:
		if cell == nil {
			return false
		}
		return looseEqual(cell, target)
	case OpNotEquals:
		if cell == nil {
			return true
		}
		return !looseEqual(cell, target)
	case OpIn:
		if cell == nil {
			return false
		}
		return memberOf(cell, target)
	case OpNotIn:
		if cell == nil {
			return true
		}
		return !memberOf(cell, target)
	case OpContains:
		return textMatch(cell, target, strings.Contains)
	case OpStartsWith:
		return textMatch(cell, target, strings.HasPrefix)
	case OpEndsWith:
		return textMatch(cell, target, strings.HasSuffix)
	default:
		return false
	}
}

// numericMatch coerces both sides to float64. A non-coercible cell is a
// per-row non-match; a non-coercible target disables the comparison for
// the whole column.
func numericMatch(cell, target any, cmp func(a, b float64) bool) bool {
	cv, ok := ledger.AsFloat(cell)
	if !ok {
		return false
	}
	tv, ok := ledger.AsFloat(target)
	if !ok {
		return false
	}
	return cmp(cv, tv)
}

// textMatch coerces both sides to text and compares case-insensitively.
func textMatch(cell, target any, cmp func(s, sub string) bool) bool {
	cv, ok := ledger.AsText(cell)
	if !ok {
		return false
	}
	tv, ok := ledger.AsText(target)
	if !ok {
		return false
	}
	return cmp(strings.ToLower(cv), strings.ToLower(tv))
}

// looseEqual compares numerically when both sides coerce to numbers,
// textually otherwise.
func looseEqual(cell, target any) bool {
	if cf, ok := ledger.AsFloat(cell); ok {
		if tf, ok := ledger.AsFloat(target); ok {
			return cf == tf
		}
	}
	cs, cok := ledger.AsText(cell)
	ts, tok := ledger.AsText(target)
	if !cok || !tok {
		return false
	}
	return cs == ts
}

// memberOf tests membership of a cell in the comparison value. A scalar
// comparison value is treated as a single-element set.
func memberOf(cell, target any) bool {
	for _, candidate := range asList(target) {
		if looseEqual(cell, candidate) {
			return true
		}
	}
	return false
}

func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}
