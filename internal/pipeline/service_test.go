// internal/pipeline/service_test.go
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/logger"
	"context-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fake collaborators
// ==========================

type fakeGenerator struct {
	raw []byte
	err error
}

func (g *fakeGenerator) GenerateQueries(ctx context.Context, prompt string, schema map[string]interface{}) ([]byte, error) {
	return g.raw, g.err
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.SearchResult
	err     error
	seen    []string
}

func (s *fakeSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func (s *fakeSearcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type page struct {
	content string
	delay   time.Duration
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]page
	seen  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*models.FetchedDocument, error) {
	f.mu.Lock()
	f.seen = append(f.seen, url)
	f.mu.Unlock()

	p, ok := f.pages[url]
	if !ok {
		return nil, errors.New("404")
	}
	time.Sleep(p.delay)
	return &models.FetchedDocument{URL: url, Content: p.content}, nil
}

type fakeStreamer struct {
	prompt string
	deltas []models.AnswerDelta
	err    error
}

func (s *fakeStreamer) GenerateStream(ctx context.Context, prompt string) (<-chan models.AnswerDelta, error) {
	s.prompt = prompt
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan models.AnswerDelta, len(s.deltas))
	for _, d := range s.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func result(url string) models.SearchResult {
	return models.SearchResult{URL: url, Title: url}
}

func newTestService(t *testing.T, c Collaborators) *Service {
	log := logger.NewTestLogger(t)
	workers := NewWorkers(Settings{}, c, log)
	return NewService(workers.Stages(), nil, log)
}

// ==========================
// Retrieval scenarios
// ==========================

func TestRetrieveContext_DenylistedResultIsFiltered(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SearchResult{
		"NCAA transfer portal rules": {
			result("https://www.ncaa.org/transfer"),
			result("https://www.instagram.com/p/abc"),
		},
	}}
	fetcher := &fakeFetcher{pages: map[string]page{
		"https://www.ncaa.org/transfer":   {content: "Transfer portal windows open in December."},
		"https://www.instagram.com/p/abc": {content: "should never be fetched"},
	}}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`["NCAA transfer portal rules"]`)},
		Searcher:  searcher,
		Fetcher:   fetcher,
	})

	run := svc.RetrieveContext(context.Background(), []string{"how does the transfer portal work?"})

	require.Len(t, run.Links, 1)
	assert.Equal(t, "https://www.ncaa.org/transfer", run.Links[0].URL)
	assert.Equal(t, []string{"https://www.ncaa.org/transfer"}, fetcher.seen)
	assert.Equal(t, "Transfer portal windows open in December.", run.Context)
	assert.NotEmpty(t, run.ID)
}

func TestRetrieveContext_SlowFetchIsDropped(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SearchResult{
		"q1": {result("https://a.example"), result("https://b.example")},
		"q2": {result("https://c.example")},
	}}
	fetcher := &fakeFetcher{pages: map[string]page{
		"https://a.example": {content: "alpha", delay: 20 * time.Millisecond},
		"https://b.example": {content: "bravo", delay: time.Second},
		"https://c.example": {content: "charlie"},
	}}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`["q1", "q2", "q3"]`)},
		Searcher:  searcher,
		Fetcher:   fetcher,
	})

	start := time.Now()
	run := svc.RetrieveContext(context.Background(), []string{"question"})
	elapsed := time.Since(start)

	assert.Len(t, run.Links, 3)
	require.Len(t, run.Documents, 2)
	assert.Equal(t, "alpha\ncharlie", run.Context)
	assert.Less(t, elapsed, time.Second)
}

func TestRetrieveContext_NoQueriesSkipsRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	fetcher := &fakeFetcher{}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`[]`)},
		Searcher:  searcher,
		Fetcher:   fetcher,
	})

	run := svc.RetrieveContext(context.Background(), []string{"hello"})

	assert.Equal(t, "", run.Context)
	assert.Empty(t, run.Queries)
	assert.Empty(t, run.Links)
	assert.Equal(t, 0, searcher.calls())
	assert.Empty(t, fetcher.seen)
}

func TestRetrieveContext_DerivationFailureIsSoft(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{err: errors.New("quota exceeded")},
		Searcher:  searcher,
		Fetcher:   &fakeFetcher{},
	})

	run := svc.RetrieveContext(context.Background(), []string{"hello"})

	assert.Equal(t, "", run.Context)
	assert.Equal(t, 0, searcher.calls())
}

func TestRetrieveContext_AllSearchesFail(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("provider down")}
	fetcher := &fakeFetcher{}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`["a", "b", "c"]`)},
		Searcher:  searcher,
		Fetcher:   fetcher,
	})

	run := svc.RetrieveContext(context.Background(), []string{"hello"})

	assert.Equal(t, "", run.Context)
	assert.Empty(t, run.Links)
	assert.Equal(t, 2, searcher.calls())
	assert.Empty(t, fetcher.seen)
}

func TestRetrieveContext_SearchesOnlyFirstTwoQueries(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.SearchResult{}}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`["one", "two", "three"]`)},
		Searcher:  searcher,
		Fetcher:   &fakeFetcher{},
	})

	run := svc.RetrieveContext(context.Background(), []string{"hello"})

	assert.Len(t, run.Queries, 3)
	assert.ElementsMatch(t, []string{"one", "two"}, searcher.seen)
}

// ==========================
// Answer
// ==========================

func TestAnswer_StreamsWithRetrievedContext(t *testing.T) {
	streamer := &fakeStreamer{deltas: []models.AnswerDelta{{Text: "It "}, {Text: "opens in December."}}}
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`["transfer portal window"]`)},
		Searcher: &fakeSearcher{results: map[string][]models.SearchResult{
			"transfer portal window": {result("https://a.example")},
		}},
		Fetcher:  &fakeFetcher{pages: map[string]page{"https://a.example": {content: "Window: December."}}},
		Streamer: streamer,
	})

	history := models.NewHistory(
		models.NewUserTurn("tell me about the transfer portal"),
		models.NewAssistantTurn("Sure."),
		models.NewUserTurn("when does it open?"),
	)
	run, deltas, err := svc.Answer(context.Background(), history)
	require.NoError(t, err)

	var b strings.Builder
	for d := range deltas {
		require.NoError(t, d.Err)
		b.WriteString(d.Text)
	}

	assert.Equal(t, "It opens in December.", b.String())
	assert.Equal(t, "Window: December.", run.Context)
	assert.Contains(t, streamer.prompt, "<context>Window: December.</context>")
	assert.Contains(t, streamer.prompt, "<user_question>when does it open?</user_question>")
}

func TestAnswer_GenerationFailureIsHard(t *testing.T) {
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`[]`)},
		Searcher:  &fakeSearcher{},
		Fetcher:   &fakeFetcher{},
		Streamer:  &fakeStreamer{err: errors.New("500")},
	})

	run, deltas, err := svc.Answer(context.Background(), models.NewHistory(models.NewUserTurn("hi")))

	require.Error(t, err)
	assert.Nil(t, deltas)
	assert.NotNil(t, run)
	assert.Equal(t, apperrors.ErrCodeLLMGenerationFailed, apperrors.CodeOf(err))
}

func TestAnswer_MidStreamFailureEndsWithError(t *testing.T) {
	svc := newTestService(t, Collaborators{
		Generator: &fakeGenerator{raw: []byte(`[]`)},
		Searcher:  &fakeSearcher{},
		Fetcher:   &fakeFetcher{},
		Streamer: &fakeStreamer{deltas: []models.AnswerDelta{
			{Text: "part"},
			{Err: errors.New("stream reset")},
		}},
	})

	_, deltas, err := svc.Answer(context.Background(), models.NewHistory(models.NewUserTurn("hi")))
	require.NoError(t, err)

	var last models.AnswerDelta
	for d := range deltas {
		last = d
	}
	require.Error(t, last.Err)
	assert.Equal(t, apperrors.ErrCodeLLMGenerationFailed, apperrors.CodeOf(last.Err))
}
