// Package features derives lightweight per-transaction signals used by
// anomaly scoring.
package features

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/ledger"
)

// Vector holds the engineered signals for one transaction, in row order
// with the source table.
type Vector struct {
	TxnID        string  `json:"txn_id"`
	Hour         int     `json:"txn_hour"`
	HourValid    bool    `json:"-"`
	AmountZScore float64 `json:"amount_zscore"`
}

// Build computes the feature vectors for every row of the table. The
// amount z-score uses the population deviation of the valid amounts; a
// zero deviation, or a row whose amount did not parse, scores 0. The
// transaction hour is only valid when the timestamp parsed.
func Build(t *ledger.Table) []Vector {
	txns := t.Transactions()
	out := make([]Vector, len(txns))

	mean, std := amountStats(t)

	for i, txn := range txns {
		v := Vector{TxnID: txn.TxnID}
		if txn.TimestampValid {
			v.Hour = txn.Timestamp.Hour()
			v.HourValid = true
		}
		if txn.AmountValid && std > 0 {
			v.AmountZScore = (txn.Amount - mean) / std
		}
		out[i] = v
	}
	return out
}

// amountStats returns the mean and population standard deviation of the
// parseable amounts.
func amountStats(t *ledger.Table) (mean, std float64) {
	var sum float64
	var n int
	for _, txn := range t.Transactions() {
		if txn.AmountValid {
			sum += txn.Amount
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)

	var variance float64
	for _, txn := range t.Transactions() {
		if txn.AmountValid {
			d := txn.Amount - mean
			variance += d * d
		}
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}
