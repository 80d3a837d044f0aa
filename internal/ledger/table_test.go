package ledger

import (
	"testing"
	"time"
)

func TestFromRowsNormalization(t *testing.T) {
	table := FromRows([]Row{
		{
			"txn_id":      "T1",
			"timestamp":   "2024-03-01 10:00:00",
			"amount":      "9600.50",
			"currency":    "usd",
			"customer_id": "C1",
			"country_src": "us",
			"country_dst": "mx",
			"channel":     "CASH",
		},
	})

	txn := table.Txn(0)
	if !txn.TimestampValid {
		t.Error("timestamp should parse")
	}
	if want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC); !txn.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", txn.Timestamp, want)
	}
	if !txn.AmountValid || txn.Amount != 9600.50 {
		t.Errorf("amount = %v (valid=%v), want 9600.50", txn.Amount, txn.AmountValid)
	}
	if txn.Currency != "USD" || txn.CountrySrc != "US" || txn.CountryDst != "MX" {
		t.Errorf("currency/countries not upper-cased: %+v", txn)
	}
	if txn.Channel != "cash" {
		t.Errorf("channel = %q, want lower-cased cash", txn.Channel)
	}
	if !txn.KYCVerified {
		t.Error("absent kyc_verified must default to true")
	}
	if txn.PEPFlag {
		t.Error("absent pep_flag must default to false")
	}

	// Normalized values flow back into the raw row so generic field
	// lookups see the canonical form.
	if v, ok := table.Field(0, "currency"); !ok || v != "USD" {
		t.Errorf("row currency = %v, want USD", v)
	}
	if v, ok := table.Field(0, "amount"); !ok || v != 9600.50 {
		t.Errorf("row amount = %v, want coerced float", v)
	}
}

func TestFromRowsInvalidCells(t *testing.T) {
	table := FromRows([]Row{
		{"txn_id": "T1", "timestamp": "whenever", "amount": "lots"},
	})

	txn := table.Txn(0)
	if txn.TimestampValid {
		t.Error("unparseable timestamp must be marked invalid")
	}
	if txn.AmountValid {
		t.Error("non-numeric amount must be marked invalid")
	}
	// The raw cell survives untouched for generic lookups.
	if v, _ := table.Field(0, "amount"); v != "lots" {
		t.Errorf("raw amount = %v, want original string", v)
	}
}

func TestHasTxnID(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		if !FromRows([]Row{{"txn_id": "T1"}}).HasTxnID() {
			t.Error("HasTxnID = false with txn_id present")
		}
	})
	t.Run("Absent", func(t *testing.T) {
		if FromRows([]Row{{"amount": 1}}).HasTxnID() {
			t.Error("HasTxnID = true with txn_id absent")
		}
	})
	t.Run("Empty", func(t *testing.T) {
		if !FromRows(nil).HasTxnID() {
			t.Error("an empty table vacuously has txn_id")
		}
	})
}

func TestFieldAbsentAndNil(t *testing.T) {
	table := FromRows([]Row{
		{"txn_id": "T1", "memo": nil},
	})

	if _, ok := table.Field(0, "missing"); ok {
		t.Error("absent column must report ok=false")
	}
	if _, ok := table.Field(0, "memo"); ok {
		t.Error("nil cell must report ok=false")
	}
}

func TestFromRowsDoesNotMutateInput(t *testing.T) {
	raw := []Row{{"txn_id": "T1", "currency": "usd"}}
	FromRows(raw)
	if raw[0]["currency"] != "usd" {
		t.Errorf("input row mutated: currency = %v", raw[0]["currency"])
	}
}

func TestTimestampLayouts(t *testing.T) {
	for _, tc := range []struct {
		name, raw string
		ok        bool
	}{
		{"RFC3339", "2024-03-01T10:00:00Z", true},
		{"RFC3339Nano", "2024-03-01T10:00:00.123456789Z", true},
		{"NoZone", "2024-03-01T10:00:00", true},
		{"SpaceSeparated", "2024-03-01 10:00:00", true},
		{"DateOnly", "2024-03-01", true},
		{"Empty", "", false},
		{"Garbage", "first of march", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := parseTimestamp(tc.raw)
			if ok != tc.ok {
				t.Errorf("parseTimestamp(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			}
		})
	}
}
