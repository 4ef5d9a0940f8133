// internal/workers/context-retrieval/filter-links/handler.go
package filterlinks

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
	TaskType = "filter-links"
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

	mu       sync.RWMutex
	denylist []string
}

func NewHandler(config *Config, log Logger) *Handler {
	return &Handler{
		config:   config,
		denylist: normalizePatterns(config.Denylist),
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// ReloadDenylist replaces the active denylist from source. On failure the
// current list stays in effect.
func (h *Handler) ReloadDenylist(ctx context.Context, source DenylistSource) error {
	patterns, err := source.LoadDenylist(ctx)
	if err != nil {
		stdErr := apperrors.NewDenylistLoadFailedError(err)
		metrics.SoftFailures.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.logger.Warn("denylist reload failed, keeping current list", map[string]interface{}{
			"error": err.Error(),
		})
		return stdErr
	}

	normalized := normalizePatterns(patterns)
	h.mu.Lock()
	h.denylist = normalized
	h.mu.Unlock()

	h.logger.Info("denylist loaded", map[string]interface{}{"patterns": len(normalized)})
	return nil
}

// Denylist returns a copy of the active patterns.
func (h *Handler) Denylist() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.denylist...)
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
	return &Output{Links: models.LinkURLs(h.Filter(input.URLs))}, nil
}

// Filter applies the active denylist and dedupe to urls.
func (h *Handler) Filter(urls []string) []models.CandidateLink {
	links := Filter(urls, h.Denylist(), h.config.MaxCandidates)
	h.logger.Info("links filtered", map[string]interface{}{
		"in":  len(urls),
		"out": len(links),
	})
	return links
}
