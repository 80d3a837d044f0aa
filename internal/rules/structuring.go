package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// bandEvent is one near-threshold transaction inside a customer/currency
// group, ordered by timestamp.
type bandEvent struct {
	txnID string
	ts    time.Time
}

// detectStructuring finds clusters of near-threshold transactions per
// (customer, currency) group. Every selected transaction anchors its own
// window [anchor, anchor+window]; when a window holds at least
// min_events transactions, every member is flagged. Overlapping windows
// anchored at different transactions each re-emit their members, so
// duplicate hits for one transaction are expected output, not a bug —
// the detector favors recall.
func detectStructuring(t *ledger.Table, spec *domain.ModernSpec) []domain.Hit {
	window := time.Duration(spec.Thresholds.StructuringWindowMinutes) * time.Minute
	minEvents := spec.Thresholds.StructuringMinEvents
	band := spec.Thresholds.NearThresholdBand

	type groupKey struct {
		customer string
		currency string
	}

	// Groups are collected in first-appearance order so output is
	// deterministic for a fixed input order.
	var order []groupKey
	groups := make(map[groupKey][]bandEvent)

	for _, txn := range t.Transactions() {
		// Rows without a parseable timestamp are excluded from this
		// rule only.
		if !txn.TimestampValid || !txn.AmountValid {
			continue
		}

		threshold := spec.EffectiveThreshold(txn.Currency)
		lo, hi := threshold-band, threshold-1
		if txn.Amount < lo || txn.Amount > hi {
			continue
		}

		key := groupKey{customer: txn.CustomerID, currency: txn.Currency}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], bandEvent{txnID: txn.TxnID, ts: txn.Timestamp})
	}

	var hits []domain.Hit
	for _, key := range order {
		events := groups[key]
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].ts.Before(events[j].ts)
		})

		threshold := spec.EffectiveThreshold(key.currency)

		for _, anchor := range events {
			end := anchor.ts.Add(window)

			var members []bandEvent
			for _, ev := range events {
				if !ev.ts.Before(anchor.ts) && !ev.ts.After(end) {
					members = append(members, ev)
				}
			}

			if len(members) < minEvents {
				continue
			}

			reason := fmt.Sprintf(
				"%d transactions within %d minutes just under threshold ~%.0f for customer %s in %s",
				len(members), spec.Thresholds.StructuringWindowMinutes, threshold, key.customer, key.currency)
			for _, ev := range members {
				hits = append(hits, domain.NewDetectorHit(ev.txnID, RuleIDStructuring, SeverityStructuring, reason))
			}
		}
	}

	return hits
}
