package scraper

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	apperrors "context-engine/internal/common/errors"
	commonhttp "context-engine/internal/common/http"
	"context-engine/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// DirectFetcher downloads the page itself and reduces the HTML to text.
type DirectFetcher struct {
	client    *commonhttp.Client
	policy    *bluemonday.Policy
	wordLimit int
}

func NewDirectFetcher(client *commonhttp.Client, wordLimit int) *DirectFetcher {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &DirectFetcher{client: client, policy: policy, wordLimit: wordLimit}
}

func (f *DirectFetcher) Fetch(ctx context.Context, url string) (*models.FetchedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(url, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, apperrors.NewFetchFailedError(url, fmt.Errorf("page returned %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.HasPrefix(contentType, "text/") {
		resp.Body.Close()
		return nil, apperrors.NewFetchFailedError(url, fmt.Errorf("unsupported content type %q", contentType))
	}

	body, err := f.client.ReadBody(resp)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(url, err)
	}

	return &models.FetchedDocument{URL: url, Content: f.extractText(string(body))}, nil
}

// extractText strips markup, skipping script and style bodies, and
// normalizes whitespace.
func (f *DirectFetcher) extractText(page string) string {
	text := html.UnescapeString(f.policy.Sanitize(page))
	return limitWords(text, f.wordLimit)
}
