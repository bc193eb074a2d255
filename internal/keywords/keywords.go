// Package keywords decides whether a fetched page looks like a careers page
// by testing its visible text against a vocabulary of job-posting terms.
package keywords

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jonathan/careers-finder/internal/fetch"
)

//go:embed vocabulary.txt
var defaultVocabulary string

// DefaultVocabulary returns the built-in job-posting terms.
func DefaultVocabulary() []string {
	terms, _ := ParseVocabulary(strings.NewReader(defaultVocabulary))
	return terms
}

// ParseVocabulary reads one term per line. Terms are lowercased and
// deduplicated; blank lines and # comments are skipped.
func ParseVocabulary(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var terms []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return terms, nil
}

// LoadVocabulary reads a vocabulary file from disk.
func LoadVocabulary(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	terms, err := ParseVocabulary(f)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("vocabulary file %s has no terms", path)
	}
	return terms, nil
}

// Checker fetches pages and reports which vocabulary terms they contain.
type Checker struct {
	vocabulary []string
	options    *fetch.Options
}

// NewChecker creates a Checker. A nil or empty vocabulary uses
// DefaultVocabulary; nil options use fetch.DefaultOptions.
func NewChecker(vocabulary []string, options *fetch.Options) *Checker {
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary()
	}
	if options == nil {
		options = fetch.DefaultOptions()
	}
	lowered := make([]string, len(vocabulary))
	for i, term := range vocabulary {
		lowered[i] = strings.ToLower(term)
	}
	return &Checker{vocabulary: lowered, options: options}
}

// Vocabulary returns the terms the checker looks for.
func (c *Checker) Vocabulary() []string {
	return append([]string(nil), c.vocabulary...)
}

// Match fetches url and returns the vocabulary terms found in its visible
// text, sorted. An empty result means the page carried no job signal.
// Fetch failures are returned as *fetch.Error.
func (c *Checker) Match(ctx context.Context, url string) ([]string, error) {
	result, err := fetch.URL(ctx, url, c.options)
	if err != nil {
		return nil, err
	}

	text, err := fetch.StripPage(strings.ToLower(result.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to reduce page %s: %w", url, err)
	}
	return c.MatchText(text), nil
}

// MatchText returns the vocabulary terms that occur in text, sorted.
func (c *Checker) MatchText(text string) []string {
	text = strings.ToLower(text)
	var matches []string
	for _, term := range c.vocabulary {
		if term != "" && strings.Contains(text, term) {
			matches = append(matches, term)
		}
	}
	sort.Strings(matches)
	return matches
}
