// internal/workers/context-retrieval/fetch-content/handler.go
package fetchcontent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"context-engine/internal/common/camunda"
	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/metrics"
	"context-engine/internal/common/validation"
	"context-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-content"
)

const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
	outcomeEmpty   = "empty"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Fetcher retrieves one page's text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchedDocument, error)
}

type Handler struct {
	config  *Config
	fetcher Fetcher
	logger  Logger
}

func NewHandler(config *Config, fetcher Fetcher, log Logger) *Handler {
	return &Handler{
		config:  config,
		fetcher: fetcher,
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
	links := make([]models.CandidateLink, len(input.Links))
	for i, u := range input.Links {
		links[i] = models.CandidateLink{URL: u}
	}
	return &Output{Documents: h.FetchAll(ctx, links)}, nil
}

// FetchAll fetches every link concurrently, each under its own deadline, and
// waits for all of them to settle. Links that fail, time out or come back
// empty are absent from the result; survivors keep link order.
func (h *Handler) FetchAll(ctx context.Context, links []models.CandidateLink) []models.FetchedDocument {
	slots := make([]*models.FetchedDocument, len(links))

	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			slots[i] = h.fetchOne(ctx, url)
		}(i, link.URL)
	}
	wg.Wait()

	docs := make([]models.FetchedDocument, 0, len(links))
	for _, doc := range slots {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}

	h.logger.Info("content fetch settled", map[string]interface{}{
		"links":     len(links),
		"documents": len(docs),
	})
	return docs
}

type fetchResult struct {
	doc *models.FetchedDocument
	err error
}

// fetchOne never outlives its deadline. The fetch itself runs in its own
// goroutine so a fetcher that ignores ctx cannot hold the batch; its result
// is discarded if it arrives late.
func (h *Handler) fetchOne(parent context.Context, url string) *models.FetchedDocument {
	ctx, cancel := context.WithTimeout(parent, h.config.Deadline)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		doc, err := h.fetcher.Fetch(ctx, url)
		done <- fetchResult{doc: doc, err: err}
	}()

	select {
	case r := <-done:
		switch {
		case r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
			h.drop(url, outcomeTimeout, apperrors.NewFetchTimeoutError(url, h.config.Deadline), start)
			return nil
		case r.err != nil:
			h.drop(url, outcomeError, r.err, start)
			return nil
		case r.doc == nil || strings.TrimSpace(r.doc.Content) == "":
			h.drop(url, outcomeEmpty, nil, start)
			return nil
		}
		metrics.FetchOutcomes.WithLabelValues(outcomeOK).Inc()
		return &models.FetchedDocument{URL: url, Content: r.doc.Content}

	case <-ctx.Done():
		h.drop(url, outcomeTimeout, apperrors.NewFetchTimeoutError(url, h.config.Deadline), start)
		return nil
	}
}

func (h *Handler) drop(url, outcome string, err error, start time.Time) {
	metrics.FetchOutcomes.WithLabelValues(outcome).Inc()

	fields := map[string]interface{}{
		"url":       url,
		"outcome":   outcome,
		"elapsedMs": time.Since(start).Milliseconds(),
	}
	if err != nil {
		code := apperrors.CodeOf(err)
		metrics.SoftFailures.WithLabelValues(TaskType, string(code)).Inc()
		fields["errorCode"] = string(code)
		fields["error"] = err.Error()
	}
	h.logger.Warn("fetch dropped", fields)
}
