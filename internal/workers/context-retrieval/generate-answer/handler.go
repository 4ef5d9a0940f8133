// internal/workers/context-retrieval/generate-answer/handler.go
package generateanswer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"context-engine/internal/common/camunda"
	apperrors "context-engine/internal/common/errors"
	"context-engine/internal/common/validation"
	"context-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "generate-answer"
)

const promptTemplate = "The following is context intended to help you answer the user's question. " +
	"Here is the context: <context>%s</context>. " +
	"The user's question is: <user_question>%s</user_question>. " +
	"Please answer the question using the context provided. " +
	"Do NOT mention the context but rather answer the question naturally."

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Streamer is the free-text half of the generation service.
type Streamer interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan models.AnswerDelta, error)
}

type Handler struct {
	config   *Config
	streamer Streamer
	logger   Logger
}

func NewHandler(config *Config, streamer Streamer, log Logger) *Handler {
	return &Handler{
		config:   config,
		streamer: streamer,
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

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.ThrowJobError(ctx, client, job, err, h.logger)
		return
	}
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	answer, err := h.Answer(ctx, input.Question, input.Context)
	if err != nil {
		return nil, err
	}
	return &Output{Answer: answer}, nil
}

// BuildPrompt wraps the assembled context and the question in the answer
// prompt. An empty context is sent as-is.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// Stream starts answer generation and relays text deltas. Any failure, at
// start or mid-stream, is reported as LLM_GENERATION_FAILED; a failed stream
// ends with exactly one delta carrying that error.
func (h *Handler) Stream(ctx context.Context, question, contextText string) (<-chan models.AnswerDelta, error) {
	start := time.Now()
	upstream, err := h.streamer.GenerateStream(ctx, BuildPrompt(contextText, question))
	if err != nil {
		return nil, h.fail(err, start)
	}

	out := make(chan models.AnswerDelta)
	go func() {
		defer close(out)
		chars := 0
		for d := range upstream {
			if d.Err != nil {
				d = models.AnswerDelta{Err: h.fail(d.Err, start)}
			} else {
				chars += len(d.Text)
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
			if d.Err != nil {
				return
			}
		}
		h.logger.Info("answer generated", map[string]interface{}{
			"chars":      chars,
			"durationMs": time.Since(start).Milliseconds(),
		})
	}()
	return out, nil
}

// Answer collects the whole stream. On failure no partial text is returned.
func (h *Handler) Answer(ctx context.Context, question, contextText string) (string, error) {
	deltas, err := h.Stream(ctx, question, contextText)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return "", d.Err
		}
		b.WriteString(d.Text)
	}
	if err := ctx.Err(); err != nil {
		return "", h.fail(err, time.Now())
	}
	return b.String(), nil
}

func (h *Handler) fail(err error, start time.Time) error {
	stdErr := apperrors.NewLLMGenerationFailedError(err)
	h.logger.Error("answer generation failed", map[string]interface{}{
		"errorCode":  string(stdErr.Code),
		"causeCode":  string(apperrors.CodeOf(err)),
		"error":      err.Error(),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return stdErr
}
