// Package output reads the employer list and writes per-company positions
// files.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultNameColumn is the employer-name column of the sponsor register.
const DefaultNameColumn = "Organisation Name"

// ReadCompanies reads company names from the column named column of the
// CSV file at path. Names are trimmed, blanks skipped and duplicates
// dropped, keeping first-seen order. A positive limit caps the result.
func ReadCompanies(path, column string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open companies file: %w", err)
	}
	defer func() { _ = f.Close() }()

	names, err := ParseCompanies(f, column, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}

// ParseCompanies is ReadCompanies over a reader.
func ParseCompanies(r io.Reader, column string, limit int) ([]string, error) {
	if column == "" {
		column = DefaultNameColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("companies file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		// Spreadsheet exports often prefix the first header with a BOM.
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in header", column)
	}

	seen := make(map[string]struct{})
	var names []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[idx])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
		if limit > 0 && len(names) >= limit {
			break
		}
	}
	return names, nil
}
