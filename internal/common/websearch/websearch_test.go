package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("[DEBUG] %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("[WARN] %s %v", msg, fields)
}

type stubSearcher struct {
	results []models.SearchResult
	err     error
	calls   int32
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.results, s.err
}

// ==========================
// Google Custom Search
// ==========================

func TestGoogleSearcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "test-cx", q.Get("cx"))
		assert.Equal(t, "college football rankings", q.Get("q"))
		assert.Equal(t, "5", q.Get("num"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[
			{"link":"https://a.example/1","title":"A","snippet":"first"},
			{"link":"https://b.example/2","title":"B","snippet":"second"}
		]}`)
	}))
	defer server.Close()

	searcher := NewGoogleSearcher(GoogleConfig{
		BaseURL: server.URL, APIKey: "test-key", EngineID: "test-cx", MaxResults: 5, Timeout: time.Second,
	})

	results, err := searcher.Search(context.Background(), "college football rankings")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.SearchResult{URL: "https://a.example/1", Title: "A", Snippet: "first"}, results[0])
	assert.Equal(t, "https://b.example/2", results[1].URL)
}

func TestGoogleSearcher_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	results, err := NewGoogleSearcher(GoogleConfig{BaseURL: server.URL, Timeout: time.Second}).
		Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGoogleSearcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewGoogleSearcher(GoogleConfig{BaseURL: server.URL, Timeout: time.Second}).
		Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, apperrors.CodeOf(err))
}

func TestGoogleSearcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewGoogleSearcher(GoogleConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}).
		Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeWebSearchTimeout, apperrors.CodeOf(err))
}

// ==========================
// Elasticsearch
// ==========================

func TestElasticsearchSearcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages/_search", r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"hits":{"hits":[
			{"_source":{"url":"https://idx.example/a","title":"Indexed A","content":"long text"},
			 "highlight":{"content":["<em>long</em> text"]}},
			{"_source":{"url":"https://idx.example/b","title":"Indexed B","content":"more"}}
		]}}`)
	}))
	defer server.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	results, err := NewElasticsearchSearcher(es, "pages", 5).Search(context.Background(), "long")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://idx.example/a", results[0].URL)
	assert.Equal(t, "<em>long</em> text", results[0].Snippet)
	assert.Equal(t, "", results[1].Snippet)
}

func TestElasticsearchSearcher_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad query"}`)
	}))
	defer server.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	_, err = NewElasticsearchSearcher(es, "pages", 5).Search(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, apperrors.CodeOf(err))
}

// ==========================
// Redis cache
// ==========================

func TestCachedSearcher_MissThenHit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubSearcher{results: []models.SearchResult{{URL: "https://a.example", Title: "A"}}}
	cached := NewCachedSearcher(inner, rdb, time.Minute, "search:", &TestLogger{t: t})

	first, err := cached.Search(context.Background(), "Transfer Portal")
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), "  transfer portal ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	key := cached.key("transfer portal")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestCachedSearcher_InnerErrorNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inner := &stubSearcher{err: errors.New("backend down")}
	cached := NewCachedSearcher(inner, rdb, time.Minute, "search:", &TestLogger{t: t})

	_, err := cached.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCachedSearcher_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &stubSearcher{results: []models.SearchResult{{URL: "https://a.example"}}}
	cached := NewCachedSearcher(inner, db, time.Minute, "search:", &TestLogger{t: t})

	mock.ExpectGet(cached.key("q")).SetErr(errors.New("connection refused"))

	results, err := cached.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}
