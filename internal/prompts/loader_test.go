package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_PositionsPrompts(t *testing.T) {
	ClearCache()

	system, err := Get(PositionsFile, KeyPositionsSystem)
	require.NoError(t, err)
	assert.Contains(t, system, `"positions"`)
	assert.Contains(t, system, "N/A")

	user, err := Get(PositionsFile, KeyPositionsUser)
	require.NoError(t, err)
	assert.Contains(t, user, "{{.PageText}}")
}

func TestGet_ClassifyPrompts(t *testing.T) {
	ClearCache()

	categorize, err := Get(ClassifyFile, KeyCategorizeSystem)
	require.NoError(t, err)
	assert.Contains(t, categorize, "Technology & Software")
	assert.Contains(t, categorize, "15. Other")

	hiring, err := Get(ClassifyFile, KeyHiringProbabilitySystem)
	require.NoError(t, err)
	assert.Contains(t, hiring, "between 0 and 100")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(PositionsFile, "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() { assert.NotEmpty(t, MustGet(PositionsFile, KeyPositionsSystem)) })
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		expected string
	}{
		{"substitutes", "Careers for {{.Company}} at {{.URL}}", map[string]string{"Company": "Acme", "URL": "https://acme.com"}, "Careers for Acme at https://acme.com"},
		{"no placeholders", "plain", map[string]string{"Key": "Value"}, "plain"},
		{"unknown placeholder kept", "Hello {{.Name}}", map[string]string{}, "Hello {{.Name}}"},
		{"value is not re-expanded", "{{.A}}", map[string]string{"A": "{{.B}}", "B": "x"}, "{{.B}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.template, tt.data))
		})
	}
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(PositionsFile)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyPositionsSystem, KeyPositionsUser}, keys)
}
