package domain

import "time"

// Transaction is the normalized, typed view of one ledger row.
// Normalization upper-cases currency and country codes, lower-cases the
// channel, and synthesizes defaults for optional columns before any rule
// runs: kyc_verified defaults to true, pep_flag to false.
type Transaction struct {
	TxnID      string `json:"txn_id"`
	CustomerID string `json:"customer_id"`

	// Timestamp is the parsed instant; TimestampValid is false when the
	// raw value was absent or unparseable, which excludes the row from
	// time-windowed rules only.
	Timestamp      time.Time `json:"timestamp"`
	TimestampValid bool      `json:"timestamp_valid"`

	Amount      float64 `json:"amount"`
	AmountValid bool    `json:"amount_valid"`
	Currency    string  `json:"currency"`

	CountrySrc string `json:"country_src"`
	CountryDst string `json:"country_dst"`
	Channel    string `json:"channel"`

	KYCVerified bool `json:"kyc_verified"`
	PEPFlag     bool `json:"pep_flag"`
}
