package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readDataset parses CSV rows of numbers. The last column is the response
// and every other column a feature. A first row that is not numeric is
// taken as a header and skipped. Rows must all have the same width.
func readDataset(r io.Reader) (X [][]float64, y []float64, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}

		row, perr := parseRow(record)
		if perr != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", line, perr)
		}
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("line %d: need at least one feature and a response, got %d columns", line, len(row))
		}

		X = append(X, row[:len(row)-1])
		y = append(y, row[len(row)-1])
	}

	if len(y) == 0 {
		return nil, nil, fmt.Errorf("no data rows")
	}
	return X, y, nil
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		row[i] = v
	}
	return row, nil
}
