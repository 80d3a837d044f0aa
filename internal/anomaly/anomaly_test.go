package anomaly

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/features"
)

func TestScoreAll(t *testing.T) {
	vectors := []features.Vector{
		{TxnID: "T1", AmountZScore: -3.1},
		{TxnID: "T2", AmountZScore: 2.5},
		{TxnID: "T3", AmountZScore: 1.0},
	}

	scores := ScoreAll(vectors, DefaultThreshold)
	if scores[0].Score != 3.1 || !scores[0].IsAnomalous {
		t.Errorf("T1 score = %+v, want |z| anomalous", scores[0])
	}
	if !scores[1].IsAnomalous {
		t.Error("a score equal to the threshold is anomalous")
	}
	if scores[2].IsAnomalous {
		t.Error("score 1.0 must not be anomalous at threshold 2.5")
	}
}

func TestScoreAllThresholdFallback(t *testing.T) {
	vectors := []features.Vector{{TxnID: "T1", AmountZScore: 2.6}}

	scores := ScoreAll(vectors, 0)
	if !scores[0].IsAnomalous {
		t.Error("zero threshold must fall back to the default")
	}
}
