package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// evaluateLegacy applies the generic field/operator rule list in order,
// concatenating matches rule by rule, then row by row. Definitions were
// validated at parse time, so evaluation itself cannot fail.
//
// A field that names no column in the table behaves as an all-missing
// column: equality-style and substring operators never match, while
// not_equals and not_in match every row.
func evaluateLegacy(t *ledger.Table, defs []domain.LegacyRule) []domain.Hit {
	var hits []domain.Hit

	for _, def := range defs {
		op, err := ParseOperator(def.Operator)
		if err != nil {
			// Unreachable after ParseRuleSpec validation.
			continue
		}

		for i := 0; i < t.Len(); i++ {
			cell, _ := t.Field(i, def.Field)
			if op.Match(cell, def.Value) {
				hits = append(hits, domain.NewLegacyHit(t.TxnID(i), def.ID, def.Description, cell))
			}
		}
	}

	return hits
}
