package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/careers-finder/internal/resolver"
)

// getBinaryPath returns the path to the careers_finder binary for testing
func getBinaryPath(t *testing.T) string {
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath, err := filepath.Abs(filepath.Join("..", "..", "bin", "careers_finder"))
	if err != nil {
		t.Fatalf("failed to resolve binary path: %v", err)
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/careers_finder ./cmd/careers_finder'", binaryPath)
	}
	return binaryPath
}

// command runs the binary in an empty temp dir with search credentials
// removed from the environment.
func command(t *testing.T, args ...string) *exec.Cmd {
	cmd := exec.Command(getBinaryPath(t), args...)
	cmd.Dir = t.TempDir()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SERP_") || strings.HasPrefix(kv, "GOOGLE_SEARCH_") ||
			strings.HasPrefix(kv, "GEMINI_API_KEY=") || strings.HasPrefix(kv, "DATABASE_URL=") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	return cmd
}

type stubResolver struct {
	results map[string]resolver.Resolution
	errs    map[string]error
	calls   []string
}

func (s *stubResolver) Resolve(_ context.Context, name string) (resolver.Resolution, error) {
	s.calls = append(s.calls, name)
	res, ok := s.results[name]
	if !ok {
		res = resolver.Resolution{Company: name, Status: resolver.StatusNotRelevant}
	}
	return res, s.errs[name]
}
