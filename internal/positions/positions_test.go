package positions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/careers-finder/internal/cache"
	"github.com/jonathan/careers-finder/internal/fetch"
	"github.com/jonathan/careers-finder/internal/llm"
	"github.com/jonathan/careers-finder/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	calls   atomic.Int32
	reply   *llm.Response
	err     error
	system  string
	content string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, system, content string, _ llm.ModelTier) (*llm.Response, error) {
	f.calls.Add(1)
	f.system, f.content = system, content
	return f.reply, f.err
}

func (f *fakeLLM) Close() error { return nil }

func reply(text string) *llm.Response {
	return &llm.Response{Text: text}
}

func TestExtractText(t *testing.T) {
	client := &fakeLLM{reply: reply(`{"positions":[
		{"title":"Backend Engineer","type":"Full-time","location":"London"},
		{"title":"Designer","location":""},
		{"type":"Contract"},
		{"title":"  "}]}`)}
	ex := NewExtractor(client, nil, nil, 0)

	got, err := ex.ExtractText(context.Background(), "Acme", "https://acme.com/careers", "We are hiring")
	require.NoError(t, err)
	assert.Equal(t, []Position{
		{Title: "Backend Engineer", Type: "Full-time", Location: "London"},
		{Title: "Designer", Type: NotAvailable, Location: NotAvailable},
	}, got)

	assert.Contains(t, client.system, "positions")
	assert.Contains(t, client.content, "Acme")
	assert.Contains(t, client.content, "https://acme.com/careers")
	assert.Contains(t, client.content, "We are hiring")
}

func TestExtractText_FencedReply(t *testing.T) {
	client := &fakeLLM{reply: reply("Sure!\n```json\n{\"positions\":[{\"title\":\"SRE\",\"type\":\"N/A\",\"location\":\"Remote\"}]}\n```")}

	got, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	require.NoError(t, err)
	assert.Equal(t, []Position{{Title: "SRE", Type: NotAvailable, Location: "Remote"}}, got)
}

func TestExtractText_TruncatedReply(t *testing.T) {
	client := &fakeLLM{reply: &llm.Response{
		Text:      `{"positions":[{"title":"A","type":"Full-time","location":"Leeds"},{"title":"B","type":"Full-time","location":"Leeds"},{"title":"C","ty`,
		Truncated: true,
	}}

	got, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].Title)
}

func TestExtractText_UnrepairableReply(t *testing.T) {
	client := &fakeLLM{reply: &llm.Response{Text: `{"positions":[{"title":"A`, Truncated: true}}

	_, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	assert.ErrorIs(t, err, llm.ErrUnrepairable)
}

func TestExtractText_EmptyReply(t *testing.T) {
	client := &fakeLLM{reply: reply("   ")}

	got, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractText_SchemaViolation(t *testing.T) {
	client := &fakeLLM{reply: reply(`{"jobs":[]}`)}

	_, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	var verr *schemas.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExtractText_LLMError(t *testing.T) {
	client := &fakeLLM{err: errors.New("quota exceeded")}

	_, err := NewExtractor(client, nil, nil, 0).ExtractText(context.Background(), "Acme", "u", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExtractText_Memoized(t *testing.T) {
	client := &fakeLLM{reply: reply(`{"positions":[{"title":"Engineer","type":"Full-time","location":"Bristol"}]}`)}
	store := cache.NewMemory()
	ex := NewExtractor(client, store, nil, 0)

	first, err := ex.ExtractText(context.Background(), "Acme", "u", "same page")
	require.NoError(t, err)
	second, err := ex.ExtractText(context.Background(), "Acme", "u", "same page")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), client.calls.Load())

	_, ok, err := store.Get(context.Background(), CacheKey(client.system, client.content))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ex.ExtractText(context.Background(), "Acme", "u", "different page")
	require.NoError(t, err)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestExtractText_EmptyListIsMemoized(t *testing.T) {
	client := &fakeLLM{reply: reply(`{"positions":[]}`)}
	ex := NewExtractor(client, cache.NewMemory(), nil, 0)

	for range 2 {
		got, err := ex.ExtractText(context.Background(), "Acme", "u", "no jobs")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestExtractText_SamePageDifferentCompanies(t *testing.T) {
	client := &fakeLLM{reply: reply(`{"positions":[{"title":"Engineer"}]}`)}
	ex := NewExtractor(client, cache.NewMemory(), nil, 0)

	_, err := ex.ExtractText(context.Background(), "Acme", "https://boards.example/jobs", "shared board")
	require.NoError(t, err)
	_, err = ex.ExtractText(context.Background(), "Globex", "https://boards.example/jobs", "shared board")
	require.NoError(t, err)

	assert.Equal(t, int32(2), client.calls.Load())
	assert.Contains(t, client.content, "Globex")
}

type blockingLLM struct{}

func (blockingLLM) GenerateJSON(ctx context.Context, _, _ string, _ llm.ModelTier) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingLLM) Close() error { return nil }

func TestExtractText_LLMCallHasDeadline(t *testing.T) {
	ex := NewExtractor(blockingLLM{}, nil, nil, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := ex.ExtractText(context.Background(), "Acme", "u", "text")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(3 * time.Second):
		t.Fatal("extraction did not return after the LLM timeout")
	}
}

func TestNewExtractor_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewExtractor(&fakeLLM{}, nil, nil, 0).timeout)
	assert.Equal(t, time.Second, NewExtractor(&fakeLLM{}, nil, nil, time.Second).timeout)
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("system", "abc")
	assert.True(t, strings.HasPrefix(key, "positions:"))
	assert.Len(t, key, len("positions:")+64)
	assert.Equal(t, key, CacheKey("system", "abc"))
	assert.NotEqual(t, key, CacheKey("system", "abd"))
	assert.NotEqual(t, key, CacheKey("systema", "bc"))
}

func TestExtract_FetchesAndStrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><script>var x;</script></head><body>
			<nav>Home</nav><h2>Open roles</h2><p>Platform Engineer</p></body></html>`))
	}))
	defer server.Close()
	client := &fakeLLM{reply: reply(`{"positions":[{"title":"Platform Engineer"}]}`)}

	got, err := NewExtractor(client, nil, fetch.DefaultOptions(), 0).Extract(context.Background(), "Acme", server.URL)
	require.NoError(t, err)
	assert.Equal(t, []Position{{Title: "Platform Engineer", Type: NotAvailable, Location: NotAvailable}}, got)
	assert.Contains(t, client.content, "Platform Engineer")
	assert.NotContains(t, client.content, "var x")
	assert.NotContains(t, client.content, "Home")
}

func TestExtract_DoesNotFollowRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>Engineer</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	client := &fakeLLM{reply: reply(`{"positions":[]}`)}

	_, err := NewExtractor(client, nil, nil, 0).Extract(context.Background(), "Acme", server.URL+"/jobs")
	require.Error(t, err)
	assert.True(t, fetch.IsFetchError(err))
	assert.Zero(t, client.calls.Load())
}

func TestExtract_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><script>only()</script></body></html>"))
	}))
	defer server.Close()

	_, err := NewExtractor(&fakeLLM{}, nil, nil, 0).Extract(context.Background(), "Acme", server.URL)
	assert.ErrorIs(t, err, ErrEmptyPage)
}
