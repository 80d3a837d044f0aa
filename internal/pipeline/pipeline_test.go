package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(domain.PipelineConfig{AnomalyThreshold: 2.5, TopAnomalies: 5}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestPipelineRun(t *testing.T) {
	table := ledger.FromRows([]ledger.Row{
		{"txn_id": "T1", "amount": 100, "currency": "USD", "customer_id": "C1"},
		{"txn_id": "T2", "amount": 20000, "currency": "USD", "customer_id": "C2"},
		{"txn_id": "T3", "amount": 150, "currency": "USD", "customer_id": "C3"},
	})

	result, err := newTestPipeline(t).Run(context.Background(), table, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.RunID == "" {
		t.Error("run must carry an ID")
	}
	if len(result.Hits) != 1 || result.Hits[0].TxnID != "T2" {
		t.Errorf("hits = %+v, want only the large transaction", result.Hits)
	}
	if result.Summary.TotalTransactions != 3 || result.Summary.RuleAlerts != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if !result.Enriched[1].RuleAlert {
		t.Error("T2 must be flagged in the enriched view")
	}
}

func TestPipelineRunConfigError(t *testing.T) {
	table := ledger.FromRows([]ledger.Row{{"txn_id": "T1", "amount": 1}})
	cfg := map[string]any{"rules": "not a list"}

	_, err := newTestPipeline(t).Run(context.Background(), table, cfg)
	if !errors.Is(err, domain.ErrMalformedRules) {
		t.Errorf("err = %v, want ErrMalformedRules", err)
	}
}

func TestResultToRun(t *testing.T) {
	table := ledger.FromRows([]ledger.Row{{"txn_id": "T1", "amount": 20000, "currency": "USD"}})

	result, err := newTestPipeline(t).Run(context.Background(), table, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run, err := result.ToRun("tenant-a")
	if err != nil {
		t.Fatalf("ToRun failed: %v", err)
	}
	if run.ID != result.RunID || run.TenantID != "tenant-a" {
		t.Errorf("run = %+v", run)
	}
	if run.RuleAlerts != 1 || run.TotalTransactions != 1 {
		t.Errorf("run counters = %+v", run)
	}
	if len(run.Summary) == 0 {
		t.Error("run must embed the serialized summary")
	}
}
