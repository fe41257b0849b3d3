package renderer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/models"
)

const irPage = `<html>
<head><title>Investors</title><style>.x{}</style></head>
<body>
  <nav><a href="/about">About</a></nav>
  <main id="main">
    <h1>Arista Reports Fourth Quarter 2024 Results</h1>
    <p>Revenue of   $1.93 billion.</p>
    <script>var tracking = 1;</script>
    <ul><li><a href="/files/q4-2024-results.pdf">Press Release</a></li><li><a>No href</a></li></ul>
  </main>
</body>
</html>`

func newIRServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/investors", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(irPage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func openStatic(t *testing.T, server *httptest.Server) *staticPage {
	t.Helper()
	r := NewStaticRenderer(server.Client(), "test-agent", arbor.NewLogger())
	page, err := r.Open(context.Background())
	require.NoError(t, err)
	return page.(*staticPage)
}

func TestStaticPageQueryAll(t *testing.T) {
	server := newIRServer(t)
	page := openStatic(t, server)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, server.URL+"/investors", time.Second))
	require.NoError(t, page.WaitFor(ctx, "a", time.Second))

	anchors, err := page.QueryAll(ctx, "a")
	require.NoError(t, err)
	require.Len(t, anchors, 3)
	assert.Equal(t, models.Anchor{Href: "/about", Text: "About"}, anchors[0])
	assert.Equal(t, "/files/q4-2024-results.pdf", anchors[1].Href)
	assert.Equal(t, "", anchors[2].Href)
}

func TestStaticPageVisibleText(t *testing.T) {
	server := newIRServer(t)
	page := openStatic(t, server)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, server.URL+"/investors", time.Second))

	text, err := page.Text(ctx, "main#main", time.Second)
	require.NoError(t, err)
	assert.Contains(t, text, "Arista Reports Fourth Quarter 2024 Results")
	assert.Contains(t, text, "Revenue of $1.93 billion.")
	assert.NotContains(t, text, "tracking")

	html, err := page.HTML(ctx, "h1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Arista Reports Fourth Quarter 2024 Results</h1>", html)
}

func TestStaticPageMissingSelector(t *testing.T) {
	server := newIRServer(t)
	page := openStatic(t, server)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, server.URL+"/investors", time.Second))

	_, err := page.Text(ctx, "div.release-body", time.Second)
	assert.True(t, errors.Is(err, models.ErrExtractionTimeout))
	assert.Error(t, page.WaitFor(ctx, "div.release-body", time.Second))
}

func TestStaticPageNavigateFailures(t *testing.T) {
	server := newIRServer(t)
	page := openStatic(t, server)
	ctx := context.Background()

	_, err := page.QueryAll(ctx, "a")
	assert.ErrorIs(t, err, ErrNoDocument)

	assert.Error(t, page.Navigate(ctx, server.URL+"/missing", time.Second))

	err = page.Navigate(ctx, server.URL+"/slow", 20*time.Millisecond)
	assert.True(t, IsTimeout(err))

}

func TestStaticPageFailedNavigateDropsDocument(t *testing.T) {
	server := newIRServer(t)
	page := openStatic(t, server)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, server.URL+"/investors", time.Second))
	assert.Error(t, page.Navigate(ctx, server.URL+"/missing", time.Second))

	_, err := page.QueryAll(ctx, "a")
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.ErrorIs(t, page.WaitFor(ctx, "a", time.Second), ErrNoDocument)
	_, err = page.Text(ctx, "main#main", time.Second)
	assert.ErrorIs(t, err, models.ErrExtractionTimeout)
}
