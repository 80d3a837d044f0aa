package features

import (
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/ledger"
)

func TestBuildZScores(t *testing.T) {
	// Amounts 100, 200, 300: mean 200, population std ~81.65.
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 100},
		{"txn_id": "T2", "amount": 200},
		{"txn_id": "T3", "amount": 300},
	})

	vectors := Build(table)
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	if math.Abs(vectors[1].AmountZScore) > 1e-9 {
		t.Errorf("mean amount z-score = %v, want 0", vectors[1].AmountZScore)
	}
	want := 100.0 / math.Sqrt(20000.0/3.0)
	if math.Abs(vectors[2].AmountZScore-want) > 1e-9 {
		t.Errorf("z-score = %v, want %v", vectors[2].AmountZScore, want)
	}
	if vectors[0].AmountZScore >= 0 {
		t.Errorf("below-mean amount must score negative, got %v", vectors[0].AmountZScore)
	}
}

func TestBuildZeroDeviation(t *testing.T) {
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 100},
		{"txn_id": "T2", "amount": 100},
	})

	for i, v := range Build(table) {
		if v.AmountZScore != 0 {
			t.Errorf("vector %d: z-score = %v, want 0 for zero deviation", i, v.AmountZScore)
		}
	}
}

func TestBuildInvalidCells(t *testing.T) {
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": "lots", "timestamp": "not a date"},
		{"txn_id": "T2", "amount": 100, "timestamp": "2024-03-01T14:30:00Z"},
	})

	vectors := Build(table)
	if vectors[0].AmountZScore != 0 {
		t.Errorf("unparseable amount must score 0, got %v", vectors[0].AmountZScore)
	}
	if vectors[0].HourValid {
		t.Error("unparseable timestamp must leave the hour invalid")
	}
	if !vectors[1].HourValid || vectors[1].Hour != 14 {
		t.Errorf("hour = %d (valid=%v), want 14", vectors[1].Hour, vectors[1].HourValid)
	}
}
