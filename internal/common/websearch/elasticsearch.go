package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchSearcher searches a crawled page index. Documents are expected
// to carry url, title and content fields.
type ElasticsearchSearcher struct {
	client     *elasticsearch.Client
	index      string
	maxResults int
}

func NewElasticsearchSearcher(client *elasticsearch.Client, index string, maxResults int) *ElasticsearchSearcher {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &ElasticsearchSearcher{client: client, index: index, maxResults: maxResults}
}

type pageSource struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source    pageSource          `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSearcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
		"_source": []string{"url", "title", "content"},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"content": map[string]interface{}{"fragment_size": 200, "number_of_fragments": 1},
			},
		},
		"size": s.maxResults,
	}

	body, err := json.Marshal(queryBody)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewWebSearchTimeoutError(query)
		}
		return nil, apperrors.NewSearchQueryFailedError(query, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(query, fmt.Errorf("search failed: %s", res.Status()))
	}

	var r esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(query, fmt.Errorf("decode response: %w", err))
	}

	results := make([]models.SearchResult, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		snippet := ""
		if frags := hit.Highlight["content"]; len(frags) > 0 {
			snippet = frags[0]
		}
		results = append(results, models.SearchResult{
			URL:     hit.Source.URL,
			Title:   hit.Source.Title,
			Snippet: snippet,
		})
	}
	return results, nil
}
