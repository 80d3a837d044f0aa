package rules

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestApplyLegacyEndToEnd(t *testing.T) {
	engine := newTestEngine(t)

	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 20000, "country_src": "US"},
	})
	cfg := map[string]any{
		"rules": []any{
			map[string]any{"id": "big", "field": "amount", "operator": "greater_than", "value": 10000},
		},
	}

	hits, err := engine.Apply(context.Background(), table, cfg)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].RuleID != "big" || hits[0].TxnID != "T1" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
	if got, ok := ledger.AsFloat(hits[0].MatchedValue); !ok || got != 20000 {
		t.Errorf("matched_value = %v, want 20000", hits[0].MatchedValue)
	}
	if hits[0].Severity != nil || hits[0].Reason != nil {
		t.Error("legacy hits must leave severity and reason null")
	}
}

func TestApplyLegacyUnknownFieldSemantics(t *testing.T) {
	engine := newTestEngine(t)

	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 100},
		{"txn_id": "T2", "amount": 200},
	})

	t.Run("EqualsNeverMatches", func(t *testing.T) {
		hits, err := engine.Apply(context.Background(), table, map[string]any{
			"rules": []any{
				map[string]any{"id": "r", "field": "no_such_column", "operator": "equals", "value": "x"},
			},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if len(hits) != 0 {
			t.Errorf("equals on a missing column must not match, got %d hits", len(hits))
		}
	})

	t.Run("NotEqualsMatchesEverywhere", func(t *testing.T) {
		hits, err := engine.Apply(context.Background(), table, map[string]any{
			"rules": []any{
				map[string]any{"id": "r", "field": "no_such_column", "operator": "not_equals", "value": "x"},
			},
		})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if len(hits) != 2 {
			t.Errorf("not_equals on a missing column must match every row, got %d hits", len(hits))
		}
	})
}

func TestApplyMissingTxnIDColumn(t *testing.T) {
	engine := newTestEngine(t)
	table := ledger.FromRows([]ledger.Row{
		{"amount": 100},
	})

	for name, cfg := range map[string]map[string]any{
		"LegacyPath": {"rules": []any{
			map[string]any{"id": "r", "field": "amount", "operator": "equals", "value": 100},
		}},
		"ModernPath": {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Apply(context.Background(), table, cfg)
			if !errors.Is(err, domain.ErrMissingColumn) {
				t.Errorf("expected ErrMissingColumn, got %v", err)
			}
		})
	}
}

func TestApplyNilConfigIsModernDefaults(t *testing.T) {
	engine := newTestEngine(t)
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 20000, "currency": "USD"},
		{"txn_id": "T2", "amount": 500, "currency": "USD"},
	})

	hits, err := engine.Apply(context.Background(), table, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Only the unconditional large-transaction rule fires.
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].RuleID != RuleIDLargeTxn || hits[0].TxnID != "T1" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestApplyEmptyResultShape(t *testing.T) {
	engine := newTestEngine(t)
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 10, "currency": "USD"},
	})

	hits, err := engine.Apply(context.Background(), table, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if hits == nil {
		t.Fatal("empty result must be a non-nil slice")
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
	if len(domain.HitColumns) != 6 {
		t.Fatalf("hit schema must expose exactly six columns, got %d", len(domain.HitColumns))
	}
}

func TestApplyIdempotence(t *testing.T) {
	engine := newTestEngine(t)
	rows := []ledger.Row{
		{"txn_id": "T1", "customer_id": "C1", "currency": "USD", "amount": 9600, "timestamp": "2024-05-01T10:00:00Z"},
		{"txn_id": "T2", "customer_id": "C1", "currency": "USD", "amount": 9700, "timestamp": "2024-05-01T10:05:00Z"},
		{"txn_id": "T3", "customer_id": "C1", "currency": "USD", "amount": 9800, "timestamp": "2024-05-01T10:10:00Z"},
		{"txn_id": "T4", "amount": 25000, "currency": "USD", "customer_id": "C2"},
	}
	cfg := map[string]any{"pep_watchlist": true, "kyc_required": true}

	first, err := engine.Apply(context.Background(), ledger.FromRows(rows), cfg)
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	second, err := engine.Apply(context.Background(), ledger.FromRows(rows), cfg)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must yield order-for-order identical output")
	}
}

func TestApplyCustomCELRules(t *testing.T) {
	engine := newTestEngine(t)
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 100, "currency": "USD", "channel": "CASH"},
		{"txn_id": "T2", "amount": 100, "currency": "USD", "channel": "wire"},
	})

	cfg := map[string]any{
		"custom_rules": []any{
			map[string]any{
				"id":         "cash_only",
				"expression": `channel == "cash"`,
				"severity":   0.4,
			},
		},
	}

	hits, err := engine.Apply(context.Background(), table, cfg)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].RuleID != "cash_only" || hits[0].TxnID != "T1" {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
	if hits[0].Severity == nil || *hits[0].Severity != 0.4 {
		t.Errorf("severity = %v, want 0.4", hits[0].Severity)
	}
}

func TestApplyCustomCELCompileError(t *testing.T) {
	engine := newTestEngine(t)
	table := ledger.FromRows([]ledger.Row{{"txn_id": "T1"}})

	_, err := engine.Apply(context.Background(), table, map[string]any{
		"custom_rules": []any{
			map[string]any{"id": "broken", "expression": "this is not CEL !!!"},
		},
	})
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for a broken expression, got %v", err)
	}
}
