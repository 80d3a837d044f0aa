// Package domain defines the core interfaces and types for Kestrel.
package domain

// HitColumns is the fixed output schema shared by both evaluation paths.
// Every hit exposes exactly these six fields regardless of which rule
// produced it; fields a path does not populate are null.
var HitColumns = []string{
	"txn_id",
	"rule_id",
	"rule_description",
	"matched_value",
	"severity",
	"reason",
}

// Hit is one rule match emitted by the screening engine.
type Hit struct {
	TxnID           string   `json:"txn_id"`
	RuleID          string   `json:"rule_id"`
	RuleDescription *string  `json:"rule_description"`
	MatchedValue    any      `json:"matched_value"`
	Severity        *float64 `json:"severity"`
	Reason          *string  `json:"reason"`
}

// NewLegacyHit builds a hit for the generic field/operator path.
// Severity and reason stay null; matched_value carries the offending cell.
func NewLegacyHit(txnID, ruleID, description string, matched any) Hit {
	h := Hit{
		TxnID:        txnID,
		RuleID:       ruleID,
		MatchedValue: matched,
	}
	if description != "" {
		h.RuleDescription = &description
	}
	return h
}

// NewDetectorHit builds a hit for the fixed detector battery.
// Matched value and description stay null; severity and reason are set.
func NewDetectorHit(txnID, ruleID string, severity float64, reason string) Hit {
	return Hit{
		TxnID:    txnID,
		RuleID:   ruleID,
		Severity: &severity,
		Reason:   &reason,
	}
}
