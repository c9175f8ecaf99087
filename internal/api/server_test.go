package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/crawler"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"go", "crawler"}, ParseQuery("  Go  CRAWLER go "))
	require.Empty(t, ParseQuery(" \t\n"))
	require.Empty(t, ParseQuery("?!"))
}

func TestParseQueryMatchesIndexedTokens(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"cat", "dog"}, ParseQuery("Cat, DOG... cat!"))
}

func TestServer_SearchForm(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSearcher{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), `name="query"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_SearchPageRendersRankedTable(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []crawler.SearchResult{
		{URL: "http://a.test/", TotalFrequency: 7},
		{URL: "http://b.test/<x>", TotalFrequency: 2},
	}}
	server := newTestServer(searcher, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, postForm("Lorem IPSUM lorem"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "http://a.test/")
	require.Contains(t, body, "<td>7</td>")
	require.Contains(t, body, "http://b.test/&lt;x&gt;")
	require.NotContains(t, body, "<x>")
	require.Less(t, strings.Index(body, "a.test"), strings.Index(body, "b.test"))

	calls := searcher.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{"lorem", "ipsum"}, calls[0].words)
	require.Equal(t, 5, calls[0].limit)
}

func TestServer_SearchPageNoMatches(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSearcher{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, postForm("nothing"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "No documents match")
}

func TestServer_SearchPageEmptyQuery(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	server := newTestServer(searcher, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, postForm("   "))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "enter at least one word")
	require.Empty(t, searcher.Calls())
}

func TestServer_SearchPageStoreFailure(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSearcher{err: crawler.ErrPersistence}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, postForm("lorem"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "search failed")
}

func TestServer_SearchJSON(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []crawler.SearchResult{{URL: "http://a.test/", TotalFrequency: 3}}}
	server := newTestServer(searcher, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=Foo+bar&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"foo", "bar"}, resp.Words)
	require.Equal(t, searcher.results, resp.Results)
	require.Equal(t, 2, searcher.Calls()[0].limit)
}

func TestServer_SearchJSONValidation(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSearcher{}, nil)
	for _, target := range []string{"/api/search", "/api/search?q=a&limit=-1", "/api/search?q=a&limit=abc"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestServer_SearchJSONClampsLimitAndEmptyResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	server := newTestServer(searcher, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=a&limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"results":[]`)
	require.Equal(t, 5, searcher.Calls()[0].limit)
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(&fakeSearcher{}, fakePinger{})
	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	down := newTestServer(&fakeSearcher{}, fakePinger{err: errors.New("connection refused")})
	rec = httptest.NewRecorder()
	down.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_HealthzAndMetrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeSearcher{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, postForm("warmup"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "search_queries_total")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := newTestServer(panicSearcher{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func newTestServer(searcher crawler.Searcher, pinger Pinger) *Server {
	return NewServer(searcher, pinger, Config{MaxResults: 5}, zap.NewNop())
}

func postForm(query string) *http.Request {
	form := url.Values{"query": {query}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type searchCall struct {
	words []string
	limit int
}

type fakeSearcher struct {
	mu      sync.Mutex
	results []crawler.SearchResult
	err     error
	calls   []searchCall
}

func (f *fakeSearcher) Search(_ context.Context, words []string, limit int) ([]crawler.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{words: append([]string(nil), words...), limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

type panicSearcher struct{}

func (panicSearcher) Search(context.Context, []string, int) ([]crawler.SearchResult, error) {
	panic("boom")
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}
