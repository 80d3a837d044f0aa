package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// Rule identifiers and severities of the fixed detector battery.
const (
	RuleIDStructuring     = "R1_STRUCT"
	RuleIDLargeTxn        = "R2_LARGE"
	RuleIDRiskyCorridor   = "R3_CORRIDOR"
	RuleIDCrossBorderCash = "R4_XBORDER_CASH"
	RuleIDKYCRequired     = "R5_KYC"
	RuleIDPEPWatchlist    = "R6_PEP"

	SeverityStructuring     = 0.9
	SeverityLargeTxn        = 0.6
	SeverityRiskyCorridor   = 0.5
	SeverityCrossBorderCash = 0.6
	SeverityKYCRequired     = 0.7
	SeverityPEPWatchlist    = 0.8
)

// evaluateModern runs the detector battery in the specified order:
// large transaction, structuring, risky corridor, cross-border cash,
// then the toggled KYC and PEP detectors, then any custom rules.
func evaluateModern(t *ledger.Table, spec *domain.ModernSpec, custom []*compiledCustomRule) []domain.Hit {
	var hits []domain.Hit

	hits = append(hits, detectLargeTransactions(t, spec)...)
	hits = append(hits, detectStructuring(t, spec)...)
	hits = append(hits, detectRiskyCorridors(t, spec)...)
	hits = append(hits, detectCrossBorderCash(t)...)

	if spec.KYCRequired {
		hits = append(hits, detectMissingKYC(t)...)
	}
	if spec.PEPWatchlist {
		hits = append(hits, detectPEP(t, spec)...)
	}

	hits = append(hits, evaluateCustomRules(t, custom)...)

	return hits
}

// detectLargeTransactions flags every transaction whose amount exceeds
// the effective threshold of its currency.
func detectLargeTransactions(t *ledger.Table, spec *domain.ModernSpec) []domain.Hit {
	var hits []domain.Hit
	for _, txn := range t.Transactions() {
		if !txn.AmountValid {
			continue
		}
		threshold := spec.EffectiveThreshold(txn.Currency)
		if txn.Amount > threshold {
			reason := fmt.Sprintf("amount %.2f %s exceeds large transaction threshold %.2f",
				txn.Amount, txn.Currency, threshold)
			hits = append(hits, domain.NewDetectorHit(txn.TxnID, RuleIDLargeTxn, SeverityLargeTxn, reason))
		}
	}
	return hits
}

// detectRiskyCorridors flags transactions touching a high-risk country
// on either end. An empty high-risk set produces no hits.
func detectRiskyCorridors(t *ledger.Table, spec *domain.ModernSpec) []domain.Hit {
	if len(spec.HighRiskCountries) == 0 {
		return nil
	}

	var hits []domain.Hit
	for _, txn := range t.Transactions() {
		if spec.HighRiskCountries[txn.CountrySrc] || spec.HighRiskCountries[txn.CountryDst] {
			reason := fmt.Sprintf("corridor %s->%s touches a high-risk country", txn.CountrySrc, txn.CountryDst)
			hits = append(hits, domain.NewDetectorHit(txn.TxnID, RuleIDRiskyCorridor, SeverityRiskyCorridor, reason))
		}
	}
	return hits
}

// detectCrossBorderCash flags cash transactions crossing a border.
func detectCrossBorderCash(t *ledger.Table) []domain.Hit {
	var hits []domain.Hit
	for _, txn := range t.Transactions() {
		if txn.Channel == "cash" && txn.CountrySrc != txn.CountryDst {
			reason := fmt.Sprintf("cash transaction crossing border %s->%s", txn.CountrySrc, txn.CountryDst)
			hits = append(hits, domain.NewDetectorHit(txn.TxnID, RuleIDCrossBorderCash, SeverityCrossBorderCash, reason))
		}
	}
	return hits
}

// detectMissingKYC flags transactions whose customer is not KYC
// verified. A missing kyc_verified column defaulted to true during
// normalization, so absence alone never flags.
func detectMissingKYC(t *ledger.Table) []domain.Hit {
	var hits []domain.Hit
	for _, txn := range t.Transactions() {
		if !txn.KYCVerified {
			reason := fmt.Sprintf("customer %s is not KYC verified", txn.CustomerID)
			hits = append(hits, domain.NewDetectorHit(txn.TxnID, RuleIDKYCRequired, SeverityKYCRequired, reason))
		}
	}
	return hits
}

// detectPEP flags politically exposed persons transacting above the PEP
// threshold.
func detectPEP(t *ledger.Table, spec *domain.ModernSpec) []domain.Hit {
	var hits []domain.Hit
	for _, txn := range t.Transactions() {
		if txn.PEPFlag && txn.AmountValid && txn.Amount > spec.Thresholds.PEPTxnUSD {
			reason := fmt.Sprintf("PEP transaction of %.2f %s exceeds %.2f",
				txn.Amount, txn.Currency, spec.Thresholds.PEPTxnUSD)
			hits = append(hits, domain.NewDetectorHit(txn.TxnID, RuleIDPEPWatchlist, SeverityPEPWatchlist, reason))
		}
	}
	return hits
}
