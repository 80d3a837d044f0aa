// Package anomaly scores transactions from their engineered features.
package anomaly

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/features"
)

// DefaultThreshold is the anomaly score at which a transaction is
// labeled anomalous.
const DefaultThreshold = 2.5

// Score is the anomaly verdict for one transaction.
type Score struct {
	TxnID       string  `json:"txn_id"`
	Score       float64 `json:"anomaly_score"`
	IsAnomalous bool    `json:"is_anomalous"`
}

// ScoreAll attaches anomaly scores to the feature vectors. The score is
// the magnitude of the amount z-score; at or above the threshold the
// transaction is labeled anomalous. A non-positive threshold falls back
// to the default.
func ScoreAll(vectors []features.Vector, threshold float64) []Score {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	out := make([]Score, len(vectors))
	for i, v := range vectors {
		score := math.Abs(v.AmountZScore)
		out[i] = Score{
			TxnID:       v.TxnID,
			Score:       score,
			IsAnomalous: score >= threshold,
		}
	}
	return out
}
