// Package prompts holds the LLM prompt templates, embedded at compile time
// from JSON files mapping prompt keys to text.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PositionsFile holds the open-position extraction prompts.
const PositionsFile = "positions.json"

// Keys in PositionsFile.
const (
	KeyPositionsSystem = "extract-positions-system"
	KeyPositionsUser   = "extract-positions-user"
)

// ClassifyFile holds the company-list classification prompts. The user
// message is the newline-separated company list itself.
const ClassifyFile = "classify.json"

// Keys in ClassifyFile.
const (
	KeyCategorizeSystem        = "categorize-system"
	KeyHiringProbabilitySystem = "hiring-probability-system"
)

//go:embed *.json
var files embed.FS

var (
	parsed   = make(map[string]map[string]string)
	parsedMu sync.RWMutex
)

// Get returns the prompt stored under key in filename.
func Get(filename, key string) (string, error) {
	prompts, err := load(filename)
	if err != nil {
		return "", err
	}
	prompt, ok := prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts required at startup; it panics on error.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format substitutes {{.Key}} placeholders in template. Unknown
// placeholders are left as is.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// List returns the sorted prompt keys in filename.
func List(filename string) ([]string, error) {
	prompts, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearCache drops parsed files so the next Get re-reads them.
func ClearCache() {
	parsedMu.Lock()
	parsed = make(map[string]map[string]string)
	parsedMu.Unlock()
}

func load(filename string) (map[string]string, error) {
	parsedMu.RLock()
	prompts, ok := parsed[filename]
	parsedMu.RUnlock()
	if ok {
		return prompts, nil
	}

	data, err := files.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	parsedMu.Lock()
	parsed[filename] = prompts
	parsedMu.Unlock()
	return prompts, nil
}
