// Package ledger provides the in-memory transaction table the screening
// engine evaluates, plus ingestion from CSV.
package ledger

import (
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Row is one raw transaction record. Values may be strings (CSV), or
// already-typed JSON values (API payloads).
type Row map[string]any

// Canonical column names. Optional columns are synthesized with defaults
// during normalization; only txn_id is mandatory.
const (
	ColTxnID       = "txn_id"
	ColTimestamp   = "timestamp"
	ColAmount      = "amount"
	ColCurrency    = "currency"
	ColCustomerID  = "customer_id"
	ColCountrySrc  = "country_src"
	ColCountryDst  = "country_dst"
	ColChannel     = "channel"
	ColKYCVerified = "kyc_verified"
	ColPEPFlag     = "pep_flag"
)

// timestampLayouts are tried in order when parsing raw timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Table is a normalized transaction table. Rows keep every original
// column (for generic field lookups) with canonical columns case-folded
// and defaulted; Transactions exposes the typed view of the same rows.
type Table struct {
	rows     []Row
	txns     []domain.Transaction
	hasTxnID bool
}

// FromRows normalizes raw records into a Table. Normalization never
// fails: unparseable cells are marked invalid on the typed view and the
// affected rows degrade per rule (excluded from time-windowed logic,
// non-matching for numeric comparisons).
func FromRows(raw []Row) *Table {
	t := &Table{
		rows: make([]Row, 0, len(raw)),
		txns: make([]domain.Transaction, 0, len(raw)),
	}

	// Column presence follows the raw input, before defaults are
	// synthesized. A zero-row table vacuously has every column.
	t.hasTxnID = len(raw) == 0
	for _, r := range raw {
		if _, ok := r[ColTxnID]; ok {
			t.hasTxnID = true
			break
		}
	}

	for _, r := range raw {
		row := make(Row, len(r))
		for k, v := range r {
			row[k] = v
		}

		txn := normalizeRow(row)
		t.rows = append(t.rows, row)
		t.txns = append(t.txns, txn)
	}
	return t
}

// normalizeRow fills defaults and case-normalizes canonical columns in
// place, returning the typed view.
func normalizeRow(row Row) domain.Transaction {
	var txn domain.Transaction

	txn.TxnID, _ = AsText(row[ColTxnID])
	row[ColTxnID] = txn.TxnID

	if raw, ok := row[ColTimestamp]; ok {
		txn.Timestamp, txn.TimestampValid = parseTimestamp(raw)
	}

	if raw, ok := row[ColAmount]; ok {
		txn.Amount, txn.AmountValid = AsFloat(raw)
		if txn.AmountValid {
			row[ColAmount] = txn.Amount
		}
	}

	txn.Currency = upperText(row, ColCurrency)
	txn.CountrySrc = upperText(row, ColCountrySrc)
	txn.CountryDst = upperText(row, ColCountryDst)

	if s, ok := AsText(row[ColChannel]); ok {
		txn.Channel = strings.ToLower(s)
	}
	row[ColChannel] = txn.Channel

	txn.CustomerID, _ = AsText(row[ColCustomerID])
	row[ColCustomerID] = txn.CustomerID

	txn.KYCVerified = AsBool(row[ColKYCVerified], true)
	row[ColKYCVerified] = txn.KYCVerified

	txn.PEPFlag = AsBool(row[ColPEPFlag], false)
	row[ColPEPFlag] = txn.PEPFlag

	return txn
}

func upperText(row Row, col string) string {
	s, ok := AsText(row[col])
	if ok {
		s = strings.ToUpper(s)
	}
	row[col] = s
	return s
}

func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasTxnID reports whether the input carried a txn_id column.
func (t *Table) HasTxnID() bool { return t.hasTxnID }

// TxnID returns the join key of row i.
func (t *Table) TxnID(i int) string { return t.txns[i].TxnID }

// Row returns the normalized raw record of row i.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Txn returns the typed view of row i.
func (t *Table) Txn(i int) *domain.Transaction { return &t.txns[i] }

// Transactions returns the typed views in row order.
func (t *Table) Transactions() []domain.Transaction { return t.txns }

// Field looks up a column value on row i. A column absent from the table
// behaves as an all-missing column: every lookup returns ok=false.
func (t *Table) Field(i int, name string) (any, bool) {
	v, ok := t.rows[i][name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
