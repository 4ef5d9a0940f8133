package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"
)

// GoogleConfig configures the Custom Search JSON API backend.
type GoogleConfig struct {
	BaseURL    string
	APIKey     string
	EngineID   string
	MaxResults int
	Timeout    time.Duration
}

// GoogleSearcher queries the Google Custom Search JSON API.
type GoogleSearcher struct {
	config GoogleConfig
	client *http.Client
}

func NewGoogleSearcher(cfg GoogleConfig) *GoogleSearcher {
	if cfg.MaxResults <= 0 || cfg.MaxResults > 10 {
		// The API rejects num > 10.
		cfg.MaxResults = 10
	}
	return &GoogleSearcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type googleResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (s *GoogleSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	searchURL, err := s.buildSearchURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewWebSearchTimeoutError(query)
		}
		return nil, apperrors.NewSearchQueryFailedError(query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSearchQueryFailedError(query, fmt.Errorf("search API returned %d", resp.StatusCode))
	}

	var apiResponse googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(query, fmt.Errorf("decode response: %w", err))
	}

	results := make([]models.SearchResult, 0, len(apiResponse.Items))
	for _, item := range apiResponse.Items {
		results = append(results, models.SearchResult{
			URL:     item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

func (s *GoogleSearcher) buildSearchURL(query string) (string, error) {
	baseURL, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse search base url: %w", err)
	}
	params := url.Values{}
	params.Add("key", s.config.APIKey)
	params.Add("cx", s.config.EngineID)
	params.Add("q", query)
	params.Add("num", strconv.Itoa(s.config.MaxResults))
	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout")
}
