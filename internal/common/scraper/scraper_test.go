package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "context-engine/internal/common/errors"
	commonhttp "context-engine/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Remote scrape service
// ==========================

func TestRemoteScraper_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://news.example/story", req.URL)
		assert.Equal(t, 500, req.WordLimit)

		fmt.Fprint(w, `{"url":"https://news.example/story","data":"  The story text.  "}`)
	}))
	defer server.Close()

	doc, err := NewRemoteScraper(server.URL+"/", "secret", 500, nil).
		Fetch(context.Background(), "https://news.example/story")
	require.NoError(t, err)
	assert.Equal(t, "https://news.example/story", doc.URL)
	assert.Equal(t, "The story text.", doc.Content)
}

func TestRemoteScraper_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewRemoteScraper(server.URL, "", 0, nil).Fetch(context.Background(), "https://x.example")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeFetchFailed, apperrors.CodeOf(err))
}

func TestRemoteScraper_HonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewRemoteScraper(server.URL, "", 0, nil).Fetch(ctx, "https://slow.example")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// ==========================
// Direct fetch
// ==========================

func newDirect(wordLimit int) *DirectFetcher {
	return NewDirectFetcher(commonhttp.NewClient(time.Second, commonhttp.WithUserAgent(commonhttp.BrowserUserAgent)), wordLimit)
}

func TestDirectFetcher_ExtractsText(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><style>body{color:red}</style>
<script>var x = 1;</script></head>
<body><h1>Heading</h1><p>First&nbsp;para &amp; more.</p>
<p>Second
   para.</p></body></html>`)
	}))
	defer server.Close()

	doc, err := newDirect(0).Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, commonhttp.BrowserUserAgent, gotUA)
	assert.Equal(t, "Heading First para & more. Second para.", doc.Content)
	assert.NotContains(t, doc.Content, "var x")
	assert.NotContains(t, doc.Content, "color")
}

func TestDirectFetcher_WordLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<p>one two three four five</p>`)
	}))
	defer server.Close()

	doc, err := newDirect(3).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "one two three", doc.Content)
}

func TestDirectFetcher_RejectsBinary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	_, err := newDirect(0).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeFetchFailed, apperrors.CodeOf(err))
}

func TestDirectFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newDirect(0).Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}
