package keywords

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/careers-finder/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDefaultVocabulary(t *testing.T) {
	vocab := DefaultVocabulary()
	assert.Contains(t, vocab, "vacancy")
	assert.Contains(t, vocab, "open positions")
	for _, term := range vocab {
		assert.NotEmpty(t, term)
		assert.False(t, strings.HasPrefix(term, "#"))
		assert.Equal(t, strings.ToLower(term), term)
	}
}

func TestParseVocabulary(t *testing.T) {
	terms, err := ParseVocabulary(strings.NewReader("# comment\nVacancy\n\n  vacancy \nApply Now\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"vacancy", "apply now"}, terms)
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("role\nposition\n"), 0644))

	terms, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"role", "position"}, terms)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0644))
	_, err = LoadVocabulary(empty)
	assert.Error(t, err)

	_, err = LoadVocabulary(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestChecker_MatchFindsVisibleTerms(t *testing.T) {
	server := serve(t, http.StatusOK, `<html><body>
		<nav>Join our team</nav>
		<main><h1>Current VACANCY list</h1><p>Apply Now for the role</p></main>
	</body></html>`)

	checker := NewChecker([]string{"vacancy", "apply now", "join our team", "internship"}, nil)
	matches, err := checker.Match(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"apply now", "vacancy"}, matches)
}

func TestChecker_MatchIgnoresHiddenMarkup(t *testing.T) {
	server := serve(t, http.StatusOK, `<html><head><script>var vacancy = true;</script></head>
		<body><!-- vacancy --><p>Welcome to our store</p><button>Vacancy</button></body></html>`)

	checker := NewChecker([]string{"vacancy"}, nil)
	matches, err := checker.Match(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChecker_MatchFetchError(t *testing.T) {
	server := serve(t, http.StatusNotFound, "vacancy")

	checker := NewChecker(nil, nil)
	_, err := checker.Match(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, fetch.IsFetchError(err))
}

func TestChecker_MatchText(t *testing.T) {
	checker := NewChecker([]string{"Role", "position"}, nil)
	assert.Equal(t, []string{"position", "role"}, checker.MatchText("Open ROLE and a POSITION"))
	assert.Empty(t, checker.MatchText("nothing here"))
	assert.Equal(t, []string{"role", "position"}, checker.Vocabulary())
}
