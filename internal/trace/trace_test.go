package trace

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, uuid.Nil, RunID(ctx))
	assert.Equal(t, "", Company(ctx))

	id := uuid.New()
	ctx = WithCompany(WithRunID(ctx, id), "Acme Widgets")
	assert.Equal(t, id, RunID(ctx))
	assert.Equal(t, "Acme Widgets", Company(ctx))
}

func TestLogger_AddsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	id := uuid.New()

	ctx := WithLogger(context.Background(), base)
	ctx = WithRunID(ctx, id)
	ctx = WithCompany(ctx, "Zylo Corp")
	Logger(ctx).Info("searching")

	out := buf.String()
	assert.Contains(t, out, "run_id="+id.String())
	assert.Contains(t, out, `company="Zylo Corp"`)
	assert.Contains(t, out, "msg=searching")
}

func TestLogger_SiblingContextsDoNotLeak(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	a := WithCompany(ctx, "Alpha")
	b := WithCompany(ctx, "Beta")
	Logger(b).Info("b")
	Logger(a).Info("a")

	assert.Contains(t, buf.String(), "msg=b company=Beta")
	assert.Contains(t, buf.String(), "msg=a company=Alpha")
	assert.NotContains(t, buf.String(), "msg=a company=Beta")
}

func TestLogger_DefaultFallback(t *testing.T) {
	assert.NotNil(t, Logger(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
		wantErr  bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSetup_WritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := Setup("info", dir)
	require.NoError(t, err)

	logger.Info("hello file")
	require.NoError(t, closer.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^log_\d{8}_\d{4}\.log$`, entries[0].Name())

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestSetup_BadLevel(t *testing.T) {
	_, _, err := Setup("loud", "")
	assert.Error(t, err)
}
