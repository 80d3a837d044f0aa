package domain

import (
	"encoding/json"
	"time"
)

// ScreeningRun records one batch evaluation: when it ran, how big the
// batch was, and the summary the reporter produced.
type ScreeningRun struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`

	TotalTransactions int     `json:"totalTransactions"`
	RuleAlerts        int     `json:"ruleAlerts"`
	MaxAnomalyScore   float64 `json:"maxAnomalyScore"`

	// Summary is the serialized report, stored verbatim.
	Summary json.RawMessage `json:"summary,omitempty"`
}

// StoredRuleSpec is a persisted raw rule configuration document. The
// document keeps the caller-facing YAML/JSON shape; it is parsed into a
// tagged RuleSpec at evaluation time.
type StoredRuleSpec struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Document    map[string]any `json:"document"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
