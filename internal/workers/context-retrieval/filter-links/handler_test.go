// internal/workers/context-retrieval/filter-links/handler_test.go
package filterlinks

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return l
}

type stubSource struct {
	patterns []string
	err      error
}

func (s stubSource) LoadDenylist(ctx context.Context) ([]string, error) {
	return s.patterns, s.err
}

var defaultDenylist = LoadConfig().Denylist

// ==========================
// Filter
// ==========================

func TestFilter_Table(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty input",
			in:   nil,
			want: []string{},
		},
		{
			name: "denylisted host dropped",
			in:   []string{"https://www.instagram.com/p/abc", "https://espn.com/story"},
			want: []string{"https://espn.com/story"},
		},
		{
			name: "case insensitive",
			in:   []string{"https://WWW.YouTube.COM/watch?v=1", "https://On3.com/news", "https://ok.example"},
			want: []string{"https://ok.example"},
		},
		{
			name: "substring anywhere in url",
			in:   []string{"https://example.org/share?to=facebook.com", "https://example.org/a"},
			want: []string{"https://example.org/a"},
		},
		{
			name: "exact dedupe keeps first",
			in:   []string{"https://a.example", "https://b.example", "https://a.example"},
			want: []string{"https://a.example", "https://b.example"},
		},
		{
			name: "dedupe is exact, not normalized",
			in:   []string{"https://a.example", "https://a.example/", "https://A.example"},
			want: []string{"https://a.example", "https://a.example/", "https://A.example"},
		},
		{
			name: "empty urls dropped",
			in:   []string{"", "https://a.example", ""},
			want: []string{"https://a.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.LinkURLs(Filter(tt.in, defaultDenylist, 0))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_MaxCandidates(t *testing.T) {
	in := []string{"https://a.example", "https://tiktok.com/x", "https://a.example", "https://b.example", "https://c.example"}
	got := models.LinkURLs(Filter(in, defaultDenylist, 2))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got)
}

func TestFilter_Properties(t *testing.T) {
	hosts := []string{
		"a.example", "b.example", "news.example", "instagram.com", "Facebook.com",
		"m.youtube.com", "twitter.com", "blog.example", "linkedin.com", "on3.com",
	}
	paths := []string{"", "/", "/x", "/y?q=1"}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		in := make([]string, n)
		for i := range in {
			in[i] = "https://" + hosts[rng.Intn(len(hosts))] + paths[rng.Intn(len(paths))]
		}

		got := models.LinkURLs(Filter(in, defaultDenylist, 0))

		seen := map[string]bool{}
		for _, u := range got {
			require.False(t, seen[u], "duplicate %s", u)
			seen[u] = true
			for _, d := range defaultDenylist {
				require.NotContains(t, strings.ToLower(u), d)
			}
		}

		// Expected: first occurrences of allowed URLs, in input order.
		var want []string
		firstSeen := map[string]bool{}
		for _, u := range in {
			if firstSeen[u] || denied(u, defaultDenylist) {
				continue
			}
			firstSeen[u] = true
			want = append(want, u)
		}
		if want == nil {
			want = []string{}
		}
		require.Equal(t, want, got)
	}
}

// ==========================
// Handler + denylist source
// ==========================

func TestHandler_ScenarioSingleSurvivor(t *testing.T) {
	h := NewHandler(LoadConfig(), &TestLogger{t: t})

	links := h.Filter([]string{
		"https://www.ncaa.com/news/transfer-portal-rules",
		"https://www.instagram.com/p/portal-news",
	})
	require.Len(t, links, 1)
	assert.Equal(t, "https://www.ncaa.com/news/transfer-portal-rules", links[0].URL)
}

func TestHandler_ReloadDenylist(t *testing.T) {
	h := NewHandler(&Config{Denylist: []string{"instagram.com"}}, &TestLogger{t: t})

	require.NoError(t, h.ReloadDenylist(context.Background(), stubSource{patterns: []string{" Example.ORG ", ""}}))
	assert.Equal(t, []string{"example.org"}, h.Denylist())

	links := h.Filter([]string{"https://instagram.com/x", "https://example.org/y"})
	assert.Equal(t, []string{"https://instagram.com/x"}, models.LinkURLs(links))
}

func TestHandler_ReloadDenylistFailureKeepsCurrent(t *testing.T) {
	h := NewHandler(&Config{Denylist: []string{"instagram.com"}}, &TestLogger{t: t})

	err := h.ReloadDenylist(context.Background(), stubSource{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDenylistLoadFailed, apperrors.CodeOf(err))
	assert.Equal(t, []string{"instagram.com"}, h.Denylist())
}

func TestPostgresDenylist_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"pattern"}).
		AddRow("facebook.com").
		AddRow("pinterest.com")
	mock.ExpectQuery("SELECT pattern FROM link_denylist WHERE enabled = true").WillReturnRows(rows)

	patterns, err := NewPostgresDenylist(db).LoadDenylist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook.com", "pinterest.com"}, patterns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDenylist_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pattern FROM link_denylist").WillReturnError(errors.New("relation does not exist"))

	_, err = NewPostgresDenylist(db).LoadDenylist(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute(t *testing.T) {
	output, err := NewHandler(LoadConfig(), &TestLogger{t: t}).
		Execute(context.Background(), &Input{URLs: []string{"https://a.example", "https://a.example", "https://twitter.com/x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example"}, output.Links)
}
