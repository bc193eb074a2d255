package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Careers</h1></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Careers</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html", result.ContentType)
}

func TestURL_AcceptsAny2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	_, err := URL(context.Background(), server.URL, nil)
	assert.NoError(t, err)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
	assert.True(t, IsFetchError(err))
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "403")
}

func TestURL_FollowsRedirectsByDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved here"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := URL(context.Background(), server.URL+"/old", nil)
	require.NoError(t, err)
	assert.Equal(t, "moved here", result.HTML)
}

func TestURL_NoRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.NoRedirects = true
	result, err := URL(context.Background(), server.URL, opts)
	require.Error(t, err)
	assert.Equal(t, http.StatusFound, result.StatusCode)
}

func TestURL_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.MaxBodyBytes = 4
	result, err := URL(context.Background(), server.URL, opts)
	require.NoError(t, err)
	assert.Equal(t, "0123", result.HTML)
}

func TestStripPage_RemovesNonContent(t *testing.T) {
	html := `<html>
<head><title>Jobs</title><style>.x{color:red}</style><script>var apply = 1;</script></head>
<body>
	<header>Header vacancy</header>
	<nav>Menu</nav>
	<!-- hidden position -->
	<main>
		<h1>Open Roles</h1>


		<p>Senior Engineer</p>
	</main>
	<form><button>Apply</button><input value="x"></form>
	<aside>Sidebar</aside>
	<svg><text>logo</text></svg>
	<footer>Footer</footer>
</body></html>`

	text, err := StripPage(html)
	require.NoError(t, err)
	assert.Contains(t, text, "Open Roles")
	assert.Contains(t, text, "Senior Engineer")
	for _, gone := range []string{"Header vacancy", "Menu", "hidden position", "Apply", "Sidebar", "logo", "Footer", "var apply", "color:red"} {
		assert.NotContains(t, text, gone)
	}
	assert.NotRegexp(t, `\n\s*\n`, text)
}

func TestStripPage_ContentSelector(t *testing.T) {
	html := `<html><body><div id="intro">About us</div><div id="jobs">Backend Engineer</div></body></html>`

	text, err := StripPage(html, "#jobs", "main")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", text)
}
