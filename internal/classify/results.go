package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ReadResults loads a results file written by AppendResults. A missing
// file holds no results.
func ReadResults(path string) ([]Deduction, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results %s: %w", path, err)
	}
	var out []Deduction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unexpected schema of previous results in %s: %w", path, err)
	}
	return out, nil
}

// AppendResults adds deductions to the results file at path. An existing
// file is first moved aside to <path>_back_YYYYMMDD_HHMMSS and its contents
// carried over, so each round leaves a backup of the state before it.
func AppendResults(path string, add []Deduction, now time.Time) error {
	prev, err := ReadResults(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s_back_%s", path, now.Format("20060102_150405"))
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("failed to back up %s: %w", path, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(append(prev, add...)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results %s: %w", path, err)
	}
	return f.Close()
}

// Pending returns the names that have no deduction in done, keeping order.
func Pending(names []string, done []Deduction) []string {
	seen := make(map[string]struct{}, len(done))
	for _, d := range done {
		seen[d.Company] = struct{}{}
	}
	var out []string
	for _, n := range names {
		if _, ok := seen[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// HiringInputs formats categorized companies as "Name(Category)" for the
// hiring probability task, skipping companies already in done.
func HiringInputs(categories, done []Deduction) []string {
	names := make([]string, 0, len(categories))
	byName := make(map[string]string, len(categories))
	for _, d := range categories {
		category, err := d.Category()
		if err != nil {
			continue
		}
		if _, dup := byName[d.Company]; !dup {
			names = append(names, d.Company)
		}
		byName[d.Company] = category
	}

	pending := Pending(names, done)
	out := make([]string, 0, len(pending))
	for _, n := range pending {
		out = append(out, fmt.Sprintf("%s(%s)", n, byName[n]))
	}
	return out
}
