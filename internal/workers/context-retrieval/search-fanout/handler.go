// internal/workers/context-retrieval/search-fanout/handler.go
package searchfanout

import (
	"context"
	"sync"

	"context-engine/internal/common/camunda"
	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/metrics"
	"context-engine/internal/common/validation"
	"context-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-fanout"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Searcher runs one query against the search provider.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

type Handler struct {
	config   *Config
	searcher Searcher
	logger   Logger
}

func NewHandler(config *Config, searcher Searcher, log Logger) *Handler {
	return &Handler{
		config:   config,
		searcher: searcher,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	vars, err := job.GetVariablesAsMap()
	if err != nil {
		camunda.ThrowJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()), h.logger)
		return
	}
	if result := validation.ValidateInput(vars, inputSchema); !result.Valid {
		camunda.ThrowJobError(ctx, client, job, apperrors.NewInvalidInputError(result.Error()), h.logger)
		return
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		camunda.ThrowJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()), h.logger)
		return
	}

	output, _ := h.Execute(ctx, &input)
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	queries := make([]models.Query, len(input.Queries))
	for i, q := range input.Queries {
		queries[i] = models.Query(q)
	}
	searched := h.cap(queries)
	perQuery := h.Search(ctx, searched)

	output := &Output{
		SearchResults: make([]QueryResults, len(searched)),
		URLs:          models.FlattenURLs(perQuery),
	}
	for i, q := range searched {
		output.SearchResults[i] = QueryResults{Query: string(q), Results: perQuery[i]}
	}
	return output, nil
}

// Search issues one request per query, all at once, and waits for every one
// to settle. Slot i holds the results of query i; a failed query leaves its
// slot empty. Nothing is retried and no error is returned.
func (h *Handler) Search(ctx context.Context, queries []models.Query) [][]models.SearchResult {
	queries = h.cap(queries)
	results := make([][]models.SearchResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q models.Query) {
			defer wg.Done()

			res, err := h.searcher.Search(ctx, string(q))
			if err != nil {
				code := apperrors.CodeOf(err)
				metrics.SoftFailures.WithLabelValues(TaskType, string(code)).Inc()
				h.logger.Warn("search failed, dropping query", map[string]interface{}{
					"query":     string(q),
					"errorCode": string(code),
					"error":     err.Error(),
				})
				return
			}
			results[i] = res
		}(i, q)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	h.logger.Info("search fan-out settled", map[string]interface{}{
		"queries": len(queries),
		"results": total,
	})
	return results
}

func (h *Handler) cap(queries []models.Query) []models.Query {
	if h.config.MaxQueries > 0 && len(queries) > h.config.MaxQueries {
		return queries[:h.config.MaxQueries]
	}
	return queries
}
