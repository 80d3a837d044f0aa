// Package report assembles the run summary handed to API callers and
// persisted with each screening run.
package report

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/merge"
)

// DefaultTopN bounds the top-anomalies list in the summary.
const DefaultTopN = 5

// Anomaly is one entry of the top-anomalies list.
type Anomaly struct {
	TxnID        string  `json:"txn_id"`
	Amount       float64 `json:"amount"`
	AnomalyScore float64 `json:"anomaly_score"`
	RuleAlert    bool    `json:"rule_alert"`
}

// Alerted is one rule-flagged transaction in the summary.
type Alerted struct {
	TxnID      string  `json:"txn_id"`
	Amount     float64 `json:"amount"`
	CountryDst string  `json:"country_dst"`
}

// Summary is the serialisable outcome of one screening run.
type Summary struct {
	TotalTransactions      int            `json:"total_transactions"`
	RuleAlerts             int            `json:"rule_alerts"`
	MaxAnomalyScore        float64        `json:"max_anomaly_score"`
	AnomaliesOverThreshold int            `json:"anomalies_over_threshold"`
	TopAnomalies           []Anomaly      `json:"top_anomalies"`
	AlertedTransactions    []Alerted      `json:"alerted_transactions"`
	FeedbackSummary        map[string]int `json:"feedback_summary,omitempty"`
}

// Summarizer builds run summaries. A zero value works; TopN defaults
// when unset.
type Summarizer struct {
	TopN int
}

// Build aggregates the enriched transactions and hits into a summary.
// Feedback label counts are attached only when non-empty.
func (s *Summarizer) Build(enriched []merge.Enriched, hits []domain.Hit, feedback map[string]int) *Summary {
	topN := s.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	summary := &Summary{
		TotalTransactions:   len(enriched),
		RuleAlerts:          len(hits),
		TopAnomalies:        []Anomaly{},
		AlertedTransactions: []Alerted{},
	}

	for _, e := range enriched {
		if e.Score.Score > summary.MaxAnomalyScore {
			summary.MaxAnomalyScore = e.Score.Score
		}
		if e.Score.IsAnomalous {
			summary.AnomaliesOverThreshold++
		}
		if e.RuleAlert {
			summary.AlertedTransactions = append(summary.AlertedTransactions, Alerted{
				TxnID:      e.Txn.TxnID,
				Amount:     e.Txn.Amount,
				CountryDst: e.Txn.CountryDst,
			})
		}
	}

	summary.TopAnomalies = topAnomalies(enriched, topN)

	if len(feedback) > 0 {
		summary.FeedbackSummary = feedback
	}
	return summary
}

// topAnomalies returns the topN highest-scoring transactions, stably
// keeping row order among equal scores.
func topAnomalies(enriched []merge.Enriched, topN int) []Anomaly {
	ranked := make([]merge.Enriched, len(enriched))
	copy(ranked, enriched)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Score > ranked[j].Score.Score
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := make([]Anomaly, len(ranked))
	for i, e := range ranked {
		out[i] = Anomaly{
			TxnID:        e.Txn.TxnID,
			Amount:       e.Txn.Amount,
			AnomalyScore: e.Score.Score,
			RuleAlert:    e.RuleAlert,
		}
	}
	return out
}
