// internal/workers/context-retrieval/assemble-context/handler.go
package assemblecontext

import (
	"context"
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
	TaskType = "assemble-context"

	separator = "\n"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Handler struct {
	config *Config
	logger Logger
}

func NewHandler(config *Config, log Logger) *Handler {
	return &Handler{
		config: config,
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
	return &Output{Context: h.Assemble(input.Documents)}, nil
}

// Assemble truncates each document to DocumentLimit characters and joins them
// with newlines in input order. The limit counts runes, so a multi-byte
// character is never split.
func (h *Handler) Assemble(docs []models.FetchedDocument) string {
	if len(docs) == 0 {
		return ""
	}

	limit := h.config.DocumentLimit()
	parts := make([]string, len(docs))
	truncated := 0
	for i, doc := range docs {
		parts[i] = truncate(doc.Content, limit)
		if len(parts[i]) < len(doc.Content) {
			truncated++
		}
	}

	out := strings.Join(parts, separator)
	metrics.ContextLength.Observe(float64(len([]rune(out))))

	h.logger.Info("context assembled", map[string]interface{}{
		"documents": len(docs),
		"truncated": truncated,
		"chars":     len([]rune(out)),
	})
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
