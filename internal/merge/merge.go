// Package merge joins rule hits and anomaly scores back onto the
// transaction table.
package merge

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// Enriched is one transaction joined with its detection outputs.
type Enriched struct {
	Txn       domain.Transaction
	Vector    features.Vector
	Score     anomaly.Score
	RuleAlert bool
}

// Results joins the pipeline outputs by row order and flags each
// transaction whose txn_id appears in the hit set. The table must carry
// txn_id; the vectors and scores were built from the same table so their
// lengths are taken on trust.
func Results(t *ledger.Table, vectors []features.Vector, scores []anomaly.Score, hits []domain.Hit) ([]Enriched, error) {
	if !t.HasTxnID() {
		return nil, fmt.Errorf("%w: txn_id", domain.ErrMissingColumn)
	}

	flagged := make(map[string]bool, len(hits))
	for _, h := range hits {
		flagged[h.TxnID] = true
	}

	out := make([]Enriched, t.Len())
	for i, txn := range t.Transactions() {
		out[i] = Enriched{
			Txn:       txn,
			Vector:    vectors[i],
			Score:     scores[i],
			RuleAlert: flagged[txn.TxnID],
		}
	}
	return out, nil
}
