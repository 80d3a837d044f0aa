package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// LoadCSV reads a transaction ledger from a CSV file. The header row
// names the columns; a missing txn_id column is rejected up front so the
// engine never sees an unkeyed table.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses CSV ledger data from a reader.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	hasTxnID := false
	for _, col := range header {
		if col == ColTxnID {
			hasTxnID = true
			break
		}
	}
	if !hasTxnID {
		return nil, fmt.Errorf("%w: txn_id", domain.ErrMissingColumn)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return FromRows(rows), nil
}
