package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"
)

type scrapeRequest struct {
	URL       string `json:"url"`
	WordLimit int    `json:"word_limit"`
}

type scrapeResponse struct {
	URL     string `json:"url"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data"`
}

// RemoteScraper calls POST {base}/scrape on a scrape service.
type RemoteScraper struct {
	baseURL   string
	apiKey    string
	wordLimit int
	client    *http.Client
}

func NewRemoteScraper(baseURL, apiKey string, wordLimit int, client *http.Client) *RemoteScraper {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteScraper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		wordLimit: wordLimit,
		client:    client,
	}
}

func (s *RemoteScraper) Fetch(ctx context.Context, url string) (*models.FetchedDocument, error) {
	body, err := json.Marshal(scrapeRequest{URL: url, WordLimit: s.wordLimit})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewFetchFailedError(url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewFetchFailedError(url, fmt.Errorf("scrape service returned %d", resp.StatusCode))
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewFetchFailedError(url, fmt.Errorf("decode scrape response: %w", err))
	}

	return &models.FetchedDocument{URL: url, Content: strings.TrimSpace(out.Data)}, nil
}
