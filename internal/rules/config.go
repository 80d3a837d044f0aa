package rules

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Modern-schema threshold defaults, applied for every key the raw
// configuration omits.
const (
	DefaultLargeTxnUSD              = 10000.0
	DefaultNearThresholdBand        = 500.0
	DefaultStructuringMinEvents     = 3
	DefaultStructuringWindowMinutes = 60
	DefaultPEPTxnUSD                = 5000.0

	// DefaultCustomSeverity is used when a custom rule omits severity.
	DefaultCustomSeverity = 0.5
)

// rawThresholds distinguishes omitted keys from explicit zeros.
type rawThresholds struct {
	LargeTxnUSD              *float64 `mapstructure:"large_txn_usd"`
	NearThresholdBand        *float64 `mapstructure:"near_threshold_band"`
	StructuringMinEvents     *int     `mapstructure:"structuring_min_events"`
	StructuringWindowMinutes *int     `mapstructure:"structuring_window_minutes"`
	PEPTxnUSD                *float64 `mapstructure:"pep_txn_usd"`
}

type rawModernSpec struct {
	Thresholds        rawThresholds       `mapstructure:"thresholds"`
	PerCurrency       map[string]float64  `mapstructure:"thresholds_per_currency"`
	HighRiskCountries []string            `mapstructure:"high_risk_countries"`
	KYCRequired       bool                `mapstructure:"kyc_required"`
	PEPWatchlist      bool                `mapstructure:"pep_watchlist"`
	CustomRules       []domain.CustomRule `mapstructure:"custom_rules"`
}

// ParseRuleSpec resolves a raw configuration document into the tagged
// union once, at the boundary. Presence of a rules key selects the
// legacy schema; anything else is normalized into a modern spec with
// every threshold defaulted. A nil document is an empty modern spec.
func ParseRuleSpec(raw map[string]any) (*domain.RuleSpec, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	if rulesVal, ok := raw["rules"]; ok {
		legacy, err := parseLegacyRules(rulesVal)
		if err != nil {
			return nil, err
		}
		return &domain.RuleSpec{Kind: domain.RuleSpecLegacy, Legacy: legacy}, nil
	}

	modern, err := normalizeModern(raw)
	if err != nil {
		return nil, err
	}
	return &domain.RuleSpec{Kind: domain.RuleSpecModern, Modern: modern}, nil
}

// parseLegacyRules validates the rules container and every definition in
// it before any matching occurs.
func parseLegacyRules(rulesVal any) ([]domain.LegacyRule, error) {
	items, ok := rulesVal.([]any)
	if !ok {
		// A typed slice (e.g. from YAML decoding) is still a list.
		if typed, isTyped := rulesVal.([]map[string]any); isTyped {
			items = make([]any, len(typed))
			for i, m := range typed {
				items[i] = m
			}
		} else {
			return nil, fmt.Errorf("%w: got %T", domain.ErrMalformedRules, rulesVal)
		}
	}

	out := make([]domain.LegacyRule, 0, len(items))
	for i, item := range items {
		var rule domain.LegacyRule
		if err := decodeLoose(item, &rule); err != nil {
			return nil, fmt.Errorf("%w: rule at index %d: %v", domain.ErrConfig, i, err)
		}

		if rule.ID == "" || rule.Field == "" || rule.Operator == "" {
			return nil, fmt.Errorf("%w: rule at index %d must define id, field and operator", domain.ErrConfig, i)
		}

		// Unknown operator names are fatal before evaluation starts.
		if _, err := ParseOperator(rule.Operator); err != nil {
			return nil, err
		}

		out = append(out, rule)
	}
	return out, nil
}

// normalizeModern fills defaults for every omitted threshold, toggle and
// collection of the modern schema.
func normalizeModern(raw map[string]any) (*domain.ModernSpec, error) {
	var rm rawModernSpec
	if err := decodeLoose(raw, &rm); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	spec := &domain.ModernSpec{
		Thresholds: domain.Thresholds{
			LargeTxnUSD:              DefaultLargeTxnUSD,
			NearThresholdBand:        DefaultNearThresholdBand,
			StructuringMinEvents:     DefaultStructuringMinEvents,
			StructuringWindowMinutes: DefaultStructuringWindowMinutes,
			PEPTxnUSD:                DefaultPEPTxnUSD,
		},
		PerCurrency:       map[string]float64{},
		HighRiskCountries: map[string]bool{},
		KYCRequired:       rm.KYCRequired,
		PEPWatchlist:      rm.PEPWatchlist,
	}

	if rm.Thresholds.LargeTxnUSD != nil {
		spec.Thresholds.LargeTxnUSD = *rm.Thresholds.LargeTxnUSD
	}
	if rm.Thresholds.NearThresholdBand != nil {
		spec.Thresholds.NearThresholdBand = *rm.Thresholds.NearThresholdBand
	}
	if rm.Thresholds.StructuringMinEvents != nil {
		spec.Thresholds.StructuringMinEvents = *rm.Thresholds.StructuringMinEvents
	}
	if rm.Thresholds.StructuringWindowMinutes != nil {
		spec.Thresholds.StructuringWindowMinutes = *rm.Thresholds.StructuringWindowMinutes
	}
	if rm.Thresholds.PEPTxnUSD != nil {
		spec.Thresholds.PEPTxnUSD = *rm.Thresholds.PEPTxnUSD
	}

	for currency, threshold := range rm.PerCurrency {
		spec.PerCurrency[strings.ToUpper(currency)] = threshold
	}
	for _, country := range rm.HighRiskCountries {
		spec.HighRiskCountries[strings.ToUpper(country)] = true
	}

	for _, cr := range rm.CustomRules {
		if cr.ID == "" || cr.Expression == "" {
			return nil, fmt.Errorf("%w: custom rules must define id and expression", domain.ErrConfig)
		}
		if cr.Severity <= 0 || cr.Severity > 1 {
			cr.Severity = DefaultCustomSeverity
		}
		spec.CustomRules = append(spec.CustomRules, cr)
	}

	return spec, nil
}

// decodeLoose decodes a raw value with weak typing so YAML and JSON
// documents (ints vs floats, strings vs numbers) land in the same shape.
func decodeLoose(input any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
