package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curio/internal/ai"
	"curio/internal/feed"
	"curio/internal/store"
)

const mockRSS = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<rss version="2.0">
	<channel>
		<title>Tech Insights Blog</title>
		<link>https://blog.example.com/</link>
		<description>Thoughts on technology</description>
		<item>
			<title>The Four Seasons of Software Development</title>
			<link>https://blog.example.com/articles/1</link>
			<pubDate>Mon, 25 Aug 2025 10:30:00 +0000</pubDate>
			<guid>seasons-of-dev</guid>
			<description>Why software development really only has two seasons.</description>
		</item>
		<item>
			<title>Beyond Autumn</title>
			<link>https://blog.example.com/articles/2</link>
			<pubDate>Sun, 24 Aug 2025 14:15:00 +0000</pubDate>
			<guid>beyond-autumn</guid>
			<description>Rethinking seasonal metaphors in tech.</description>
		</item>
	</channel>
</rss>`

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, _ ai.Request) (string, error) {
	return s.reply, s.err
}

type testEnv struct {
	api      *httptest.Server
	upstream *httptest.Server
	store    *store.FileStore
	gen      *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(mockRSS))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>not a feed</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "feeds.json"))
	require.NoError(t, err)

	gen := &stubGenerator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(st, feed.NewFetcher(5*time.Second), ai.NewAssistant(gen), logger, 20)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &testEnv{api: api, upstream: upstream, store: st, gen: gen}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.api.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) getList(t *testing.T, path string) (int, []map[string]any) {
	t.Helper()
	resp, err := http.Get(e.api.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	}
	return resp.StatusCode, list
}

func TestFeedLifecycle(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/feeds", map[string]string{
		"url": "https://example.com/feed.xml", "title": "Example",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "https://example.com/feed.xml", body["url"])
	assert.Equal(t, "Example", body["title"])

	status, list := e.getList(t, "/feeds")
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, "Example", list[0]["title"])

	// Duplicate add conflicts and leaves the collection unchanged.
	status, body = e.do(t, http.MethodPost, "/feeds", map[string]string{
		"url": "https://example.com/feed.xml", "title": "Renamed",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, body["error"])

	status, body = e.do(t, http.MethodDelete, "/feeds", map[string]string{
		"url": "https://example.com/feed.xml",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Example", body["title"])

	status, _ = e.do(t, http.MethodDelete, "/feeds", map[string]string{
		"url": "https://example.com/feed.xml",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAddFeedValidation(t *testing.T) {
	e := newTestEnv(t)

	status, _ := e.do(t, http.MethodPost, "/feeds", map[string]string{"url": "https://example.com/feed.xml"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(t, http.MethodPost, "/feeds", map[string]string{"url": "not a url", "title": "X"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestValidateFeed(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/validate-feed", map[string]string{"url": e.upstream.URL + "/rss"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isValid"])
	assert.Equal(t, "Tech Insights Blog", body["title"])
	assert.EqualValues(t, 2, body["items"])

	status, _ = e.do(t, http.MethodPost, "/validate-feed", map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = e.do(t, http.MethodPost, "/validate-feed", map[string]string{"url": e.upstream.URL + "/page"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, false, body["isValid"])
}

func TestListArticles(t *testing.T) {
	e := newTestEnv(t)

	status, _ := e.getList(t, "/articles")
	assert.Equal(t, http.StatusBadRequest, status)

	status, list := e.getList(t, "/articles?feedUrl="+e.upstream.URL+"/rss")
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, list, 2)
	assert.Equal(t, "The Four Seasons of Software Development", list[0]["title"])
	assert.Equal(t, "seasons-of-dev", list[0]["guid"])
}

func TestSummary(t *testing.T) {
	e := newTestEnv(t)
	e.gen.reply = "Here is a friendly summary."

	status, body := e.do(t, http.MethodPost, "/summary", map[string]string{"title": "T", "contentSnippet": "S"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Here is a friendly summary.", body["summary"])

	status, _ = e.do(t, http.MethodPost, "/summary", map[string]string{"contentSnippet": "S"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSummaryEmptyOutputIsServerError(t *testing.T) {
	e := newTestEnv(t)
	e.gen.err = ai.ErrNoOutput

	status, body := e.do(t, http.MethodPost, "/summary", map[string]string{"title": "T"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "No summary generated", body["error"])
}

func TestAnalyze(t *testing.T) {
	e := newTestEnv(t)
	e.gen.reply = `{"categories":["a","b","c"],"sentiment":"neutral","keywords":["k1","k2","k3","k4","k5"],"readingTimeMinutes":3}`

	status, body := e.do(t, http.MethodPost, "/analyze", map[string]string{"title": "T"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "neutral", body["sentiment"])
	assert.EqualValues(t, 3, body["readingTimeMinutes"])
}

func TestAnalyzeNonJSONOutputIsServerError(t *testing.T) {
	e := newTestEnv(t)
	e.gen.reply = "plain refusal"

	status, body := e.do(t, http.MethodPost, "/analyze", map[string]string{"title": "T"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to parse analysis", body["error"])
}

func TestRecommend(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.store.Add(e.upstream.URL+"/rss", "Tech Insights")
	require.NoError(t, err)
	e.gen.reply = `{"recommendedArticles":["beyond-autumn"]}`

	status, body := e.do(t, http.MethodPost, "/recommend", map[string]any{
		"articleId": "seasons-of-dev",
		"userPreferences": map[string]any{
			"topics": []string{"software"},
		},
	})
	assert.Equal(t, http.StatusOK, status)

	articles, ok := body["articles"].([]any)
	require.True(t, ok)
	require.Len(t, articles, 1)
	first := articles[0].(map[string]any)
	assert.Equal(t, "beyond-autumn", first["guid"])

	recs, ok := body["recommendations"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, recs, "recommendedArticles")
}

func TestRecommendRequiresArticleID(t *testing.T) {
	e := newTestEnv(t)
	status, _ := e.do(t, http.MethodPost, "/recommend", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}
