package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// LoadFeedback aggregates analyst feedback labels from a CSV file into
// per-label counts. A missing or empty file, or one without a label
// column, yields an empty map so feedback stays strictly optional.
func LoadFeedback(path string) (map[string]int, error) {
	if path == "" {
		return map[string]int{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("failed to open feedback file: %w", err)
	}
	defer f.Close()

	return ReadFeedback(f)
}

// ReadFeedback parses feedback CSV data from a reader.
func ReadFeedback(r io.Reader) (map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback header: %w", err)
	}

	labelCol := -1
	for i, col := range header {
		if col == "label" {
			labelCol = i
			break
		}
	}
	if labelCol == -1 {
		return map[string]int{}, nil
	}

	counts := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read feedback record: %w", err)
		}
		if labelCol < len(record) && record[labelCol] != "" {
			counts[record[labelCol]]++
		}
	}
	return counts, nil
}
