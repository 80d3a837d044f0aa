package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestReadCSV(t *testing.T) {
	data := `txn_id,timestamp,amount,currency,customer_id,country_src,country_dst,channel
T1,2024-03-01T10:00:00Z,9600,usd,C1,US,MX,cash
T2,2024-03-01T10:05:00Z,150.25,eur,C2,DE,DE,wire
`
	table, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len = %d, want 2", table.Len())
	}
	if table.TxnID(0) != "T1" || table.TxnID(1) != "T2" {
		t.Errorf("txn ids = %s, %s", table.TxnID(0), table.TxnID(1))
	}

	txn := table.Txn(0)
	if !txn.AmountValid || txn.Amount != 9600 {
		t.Errorf("amount = %v (valid=%v), want 9600", txn.Amount, txn.AmountValid)
	}
	if txn.Currency != "USD" {
		t.Errorf("currency = %q, want USD", txn.Currency)
	}
	if txn.Channel != "cash" {
		t.Errorf("channel = %q, want cash", txn.Channel)
	}
}

func TestReadCSVMissingTxnID(t *testing.T) {
	data := "amount,currency\n100,USD\n"
	_, err := ReadCSV(strings.NewReader(data))
	if !errors.Is(err, domain.ErrMissingColumn) {
		t.Errorf("err = %v, want ErrMissingColumn", err)
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("txn_id,amount\n"))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len = %d, want 0", table.Len())
	}
	if !table.HasTxnID() {
		t.Error("header declared txn_id; empty body must still pass the column check")
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	if _, err := LoadCSV("does-not-exist.csv"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
