package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("[WARN] %s %v", msg, fields)
}

func createTestClient(t *testing.T, baseURL string) *Client {
	return NewClient(Config{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		Model:           "gemini-test",
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerOpenTime: time.Minute,
	}, nil, &TestLogger{t: t})
}

func collect(t *testing.T, ch <-chan models.AnswerDelta) (string, error) {
	t.Helper()
	var b strings.Builder
	for d := range ch {
		if d.Err != nil {
			return b.String(), d.Err
		}
		b.WriteString(d.Text)
	}
	return b.String(), nil
}

// ==========================
// GenerateQueries
// ==========================

func TestGenerateQueries_Success(t *testing.T) {
	var captured request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"[\"a\", "},{"text":"\"b\"]"}]}}]}`)
	}))
	defer server.Close()

	client := createTestClient(t, server.URL)
	schema := map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}}

	out, err := client.GenerateQueries(context.Background(), "derive", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `["a", "b"]`, string(out))

	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.Equal(t, "ARRAY", captured.GenerationConfig.ResponseSchema["type"])
	assert.Equal(t, "derive", captured.Contents[0].Parts[0].Text)
}

func TestGenerateQueries_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	out, err := createTestClient(t, server.URL).GenerateQueries(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerateQueries_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"code":500,"message":"boom"}}`)
	}))
	defer server.Close()

	_, err := createTestClient(t, server.URL).GenerateQueries(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := createTestClient(t, server.URL)
	for i := 0; i < 2; i++ {
		_, err := client.GenerateQueries(context.Background(), "q", nil)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err := client.GenerateStream(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCircuitOpen, apperrors.CodeOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// ==========================
// GenerateStream
// ==========================

func TestGenerateStream_Deltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]}}]}\n\n")
	}))
	defer server.Close()

	ch, err := createTestClient(t, server.URL).GenerateStream(context.Background(), "prompt")
	require.NoError(t, err)

	text, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestGenerateStream_MidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"partial\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"code\":503,\"message\":\"overloaded\"}}\n\n")
	}))
	defer server.Close()

	ch, err := createTestClient(t, server.URL).GenerateStream(context.Background(), "prompt")
	require.NoError(t, err)

	text, err := collect(t, ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, "partial", text)
}

func TestGenerateStream_StartFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ch, err := createTestClient(t, server.URL).GenerateStream(context.Background(), "prompt")
	assert.Error(t, err)
	assert.Nil(t, ch)
}
