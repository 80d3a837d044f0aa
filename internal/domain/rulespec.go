package domain

// RuleSpecKind discriminates the two configuration schemas. The shape is
// resolved exactly once when the raw document is parsed; downstream code
// switches on the tag instead of re-inspecting the map.
type RuleSpecKind string

const (
	// RuleSpecLegacy is the generic field/operator rule list schema.
	RuleSpecLegacy RuleSpecKind = "legacy"

	// RuleSpecModern is the fixed detector battery schema.
	RuleSpecModern RuleSpecKind = "modern"
)

// RuleSpec is the parsed, tagged rule configuration.
// Exactly one of Legacy or Modern is meaningful, selected by Kind.
type RuleSpec struct {
	Kind   RuleSpecKind `json:"kind"`
	Legacy []LegacyRule `json:"legacy,omitempty"`
	Modern *ModernSpec  `json:"modern,omitempty"`
}

// LegacyRule is one generic rule definition. ID, Field and Operator are
// required; a definition missing any of them is a configuration error.
type LegacyRule struct {
	ID          string `json:"id" mapstructure:"id"`
	Field       string `json:"field" mapstructure:"field"`
	Operator    string `json:"operator" mapstructure:"operator"`
	Value       any    `json:"value" mapstructure:"value"`
	Description string `json:"description" mapstructure:"description"`
}

// ModernSpec is the normalized configuration for the detector battery.
// Every threshold has been defaulted; lookups never miss.
type ModernSpec struct {
	Thresholds        Thresholds         `json:"thresholds"`
	PerCurrency       map[string]float64 `json:"thresholds_per_currency"`
	HighRiskCountries map[string]bool    `json:"high_risk_countries"`
	KYCRequired       bool               `json:"kyc_required"`
	PEPWatchlist      bool               `json:"pep_watchlist"`

	// CustomRules are optional CEL expressions evaluated per transaction
	// after the fixed battery.
	CustomRules []CustomRule `json:"custom_rules,omitempty"`
}

// Thresholds holds the modern schema's numeric knobs.
type Thresholds struct {
	LargeTxnUSD              float64 `json:"large_txn_usd"`
	NearThresholdBand        float64 `json:"near_threshold_band"`
	StructuringMinEvents     int     `json:"structuring_min_events"`
	StructuringWindowMinutes int     `json:"structuring_window_minutes"`
	PEPTxnUSD                float64 `json:"pep_txn_usd"`
}

// CustomRule is a user-supplied CEL expression rule.
type CustomRule struct {
	ID          string  `json:"id" mapstructure:"id"`
	Expression  string  `json:"expression" mapstructure:"expression"`
	Description string  `json:"description" mapstructure:"description"`
	Severity    float64 `json:"severity" mapstructure:"severity"`
}

// EffectiveThreshold resolves the large-transaction threshold for a
// currency: the per-currency override when present, the global default
// otherwise.
func (m *ModernSpec) EffectiveThreshold(currency string) float64 {
	if v, ok := m.PerCurrency[currency]; ok {
		return v
	}
	return m.Thresholds.LargeTxnUSD
}
