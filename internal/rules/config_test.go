package rules

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestParseRuleSpecSelectsLegacy(t *testing.T) {
	raw := map[string]any{
		"rules": []any{
			map[string]any{
				"id":          "big",
				"field":       "amount",
				"operator":    "greater_than",
				"value":       10000,
				"description": "High value transaction",
			},
		},
	}

	spec, err := ParseRuleSpec(raw)
	if err != nil {
		t.Fatalf("ParseRuleSpec failed: %v", err)
	}
	if spec.Kind != domain.RuleSpecLegacy {
		t.Fatalf("expected legacy kind, got %s", spec.Kind)
	}
	if len(spec.Legacy) != 1 || spec.Legacy[0].ID != "big" {
		t.Errorf("unexpected legacy rules: %+v", spec.Legacy)
	}
}

func TestParseRuleSpecSelectsModernAndDefaults(t *testing.T) {
	spec, err := ParseRuleSpec(map[string]any{})
	if err != nil {
		t.Fatalf("ParseRuleSpec failed: %v", err)
	}
	if spec.Kind != domain.RuleSpecModern {
		t.Fatalf("expected modern kind, got %s", spec.Kind)
	}

	th := spec.Modern.Thresholds
	if th.LargeTxnUSD != 10000 {
		t.Errorf("large_txn_usd default = %v, want 10000", th.LargeTxnUSD)
	}
	if th.NearThresholdBand != 500 {
		t.Errorf("near_threshold_band default = %v, want 500", th.NearThresholdBand)
	}
	if th.StructuringMinEvents != 3 {
		t.Errorf("structuring_min_events default = %v, want 3", th.StructuringMinEvents)
	}
	if th.StructuringWindowMinutes != 60 {
		t.Errorf("structuring_window_minutes default = %v, want 60", th.StructuringWindowMinutes)
	}
	if th.PEPTxnUSD != 5000 {
		t.Errorf("pep_txn_usd default = %v, want 5000", th.PEPTxnUSD)
	}
	if spec.Modern.PerCurrency == nil || len(spec.Modern.PerCurrency) != 0 {
		t.Errorf("per-currency map should default empty, got %v", spec.Modern.PerCurrency)
	}
	if spec.Modern.HighRiskCountries == nil || len(spec.Modern.HighRiskCountries) != 0 {
		t.Errorf("high-risk set should default empty, got %v", spec.Modern.HighRiskCountries)
	}
	if spec.Modern.KYCRequired || spec.Modern.PEPWatchlist {
		t.Error("feature toggles should default false")
	}
}

func TestParseRuleSpecNilDocument(t *testing.T) {
	spec, err := ParseRuleSpec(nil)
	if err != nil {
		t.Fatalf("ParseRuleSpec(nil) failed: %v", err)
	}
	if spec.Kind != domain.RuleSpecModern {
		t.Errorf("nil config should select modern, got %s", spec.Kind)
	}
}

func TestParseRuleSpecPartialOverrides(t *testing.T) {
	raw := map[string]any{
		"thresholds": map[string]any{
			"large_txn_usd": 20000,
		},
		"thresholds_per_currency": map[string]any{
			"eur": 9000.0,
		},
		"high_risk_countries": []any{"ir", "KP"},
		"kyc_required":        true,
	}

	spec, err := ParseRuleSpec(raw)
	if err != nil {
		t.Fatalf("ParseRuleSpec failed: %v", err)
	}

	m := spec.Modern
	if m.Thresholds.LargeTxnUSD != 20000 {
		t.Errorf("override lost: %v", m.Thresholds.LargeTxnUSD)
	}
	if m.Thresholds.NearThresholdBand != 500 {
		t.Errorf("untouched key should keep default, got %v", m.Thresholds.NearThresholdBand)
	}
	if m.PerCurrency["EUR"] != 9000 {
		t.Errorf("currency keys should be upper-cased: %v", m.PerCurrency)
	}
	if !m.HighRiskCountries["IR"] || !m.HighRiskCountries["KP"] {
		t.Errorf("country codes should be upper-cased: %v", m.HighRiskCountries)
	}
	if !m.KYCRequired || m.PEPWatchlist {
		t.Error("toggles mis-parsed")
	}
}

func TestParseRuleSpecLegacyValidation(t *testing.T) {
	t.Run("MissingField", func(t *testing.T) {
		_, err := ParseRuleSpec(map[string]any{
			"rules": []any{
				map[string]any{"id": "r1", "operator": "equals", "value": 1},
			},
		})
		if !errors.Is(err, domain.ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("UnsupportedOperator", func(t *testing.T) {
		_, err := ParseRuleSpec(map[string]any{
			"rules": []any{
				map[string]any{"id": "r1", "field": "amount", "operator": "regex", "value": 1},
			},
		})
		if !errors.Is(err, domain.ErrUnsupportedOperator) {
			t.Errorf("expected ErrUnsupportedOperator, got %v", err)
		}
	})

	t.Run("RulesNotAList", func(t *testing.T) {
		_, err := ParseRuleSpec(map[string]any{"rules": "not-a-list"})
		if !errors.Is(err, domain.ErrMalformedRules) {
			t.Errorf("expected ErrMalformedRules, got %v", err)
		}
	})
}

func TestParseRuleSpecCustomRules(t *testing.T) {
	raw := map[string]any{
		"custom_rules": []any{
			map[string]any{"id": "night_cash", "expression": `channel == "cash"`},
		},
	}

	spec, err := ParseRuleSpec(raw)
	if err != nil {
		t.Fatalf("ParseRuleSpec failed: %v", err)
	}
	if len(spec.Modern.CustomRules) != 1 {
		t.Fatalf("expected 1 custom rule, got %d", len(spec.Modern.CustomRules))
	}
	if spec.Modern.CustomRules[0].Severity != DefaultCustomSeverity {
		t.Errorf("severity should default to %v, got %v",
			DefaultCustomSeverity, spec.Modern.CustomRules[0].Severity)
	}
}
