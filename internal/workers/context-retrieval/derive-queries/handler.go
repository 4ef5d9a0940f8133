// internal/workers/context-retrieval/derive-queries/handler.go
package derivequeries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"context-engine/internal/common/camunda"
	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/metrics"
	"context-engine/internal/common/validation"
	"context-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "derive-queries"
)

var (
	ErrNoQueries = errors.New("NO_QUERIES")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Generator is the structured-output half of the generation service.
type Generator interface {
	GenerateQueries(ctx context.Context, prompt string, schema map[string]interface{}) ([]byte, error)
}

type Handler struct {
	config    *Config
	generator Generator
	logger    Logger
}

func NewHandler(config *Config, generator Generator, log Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
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

// Execute always yields an output; a failed derivation is an empty query list.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	queries, err := h.Derive(ctx, input.UserMessages)
	return &Output{Queries: models.QueryStrings(queries)}, err
}

// Derive asks the generation service for up to MaxQueries search queries.
// Every failure is soft: the returned error explains why the list is empty
// and the caller continues without searching.
func (h *Handler) Derive(ctx context.Context, userMessages []string) ([]models.Query, error) {
	messages := nonEmpty(userMessages)
	if len(messages) == 0 {
		return nil, ErrNoQueries
	}

	raw, err := h.generator.GenerateQueries(ctx, h.buildPrompt(messages), responseSchema)
	if err != nil {
		return nil, h.soft(apperrors.NewQueryDerivationFailedError(err))
	}

	if result := validation.ValidateJSON(validation.StringListSchema, raw); !result.Valid {
		return nil, h.soft(apperrors.NewQueryOutputInvalidError(result.Error()))
	}

	var candidates []string
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, h.soft(apperrors.NewQueryOutputInvalidError(err.Error()))
	}

	queries := make([]models.Query, 0, h.config.MaxQueries)
	for _, c := range candidates {
		if len(queries) == h.config.MaxQueries {
			break
		}
		if q := strings.TrimSpace(c); q != "" {
			queries = append(queries, models.Query(q))
		}
	}

	if len(queries) == 0 {
		h.logger.Info("generation service returned no queries", nil)
		return nil, ErrNoQueries
	}

	h.logger.Info("queries derived", map[string]interface{}{
		"count": len(queries),
	})
	return queries, nil
}

func (h *Handler) soft(err *apperrors.StandardError) error {
	metrics.SoftFailures.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.logger.Warn("query derivation failed, continuing without search", map[string]interface{}{
		"errorCode": string(err.Code),
		"error":     err.Error(),
	})
	return err
}

func (h *Handler) buildPrompt(messages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are the messages a user has sent in a conversation, oldest first. "+
		"Write up to %d short web search queries that would find the information needed to answer the latest message. "+
		"Return only a JSON array of strings.\n\n", h.config.MaxQueries)
	for i, m := range messages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	return b.String()
}

func nonEmpty(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
