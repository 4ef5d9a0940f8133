// Package pipeline composes the context-retrieval stages into one run:
// derive queries, search, filter links, fetch content, assemble context,
// and then stream an answer.
package pipeline

import (
	"context"
	"time"

	"context-engine/internal/common/logger"
	"context-engine/internal/common/metrics"
	"context-engine/internal/common/observability"
	"context-engine/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	OutcomeOK        = "ok"
	OutcomeNoQueries = "no_queries"
	OutcomeFailed    = "failed"
)

type Deriver interface {
	Derive(ctx context.Context, userMessages []string) ([]models.Query, error)
}

type Searcher interface {
	Search(ctx context.Context, queries []models.Query) [][]models.SearchResult
}

type LinkFilter interface {
	Filter(urls []string) []models.CandidateLink
}

type ContentFetcher interface {
	FetchAll(ctx context.Context, links []models.CandidateLink) []models.FetchedDocument
}

type Assembler interface {
	Assemble(docs []models.FetchedDocument) string
}

type AnswerStreamer interface {
	Stream(ctx context.Context, question, contextText string) (<-chan models.AnswerDelta, error)
}

// Stages holds one implementation per step. Every field is required.
type Stages struct {
	Deriver   Deriver
	Searcher  Searcher
	Filter    LinkFilter
	Fetcher   ContentFetcher
	Assembler Assembler
	Answerer  AnswerStreamer
}

// Run is what one retrieval produced. Queries, Links and Documents are kept
// for logging and the session API; Context is what the answer is built from.
type Run struct {
	ID        string                   `json:"id"`
	Queries   []models.Query           `json:"queries"`
	Links     []models.CandidateLink   `json:"links"`
	Documents []models.FetchedDocument `json:"-"`
	Context   string                   `json:"context"`
	Duration  time.Duration            `json:"-"`
}

// Service is built once per process and shared by all requests. It holds no
// per-run state.
type Service struct {
	stages Stages
	obs    *observability.Observability
	logger logger.Logger
}

func NewService(stages Stages, obs *observability.Observability, log logger.Logger) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		stages: stages,
		obs:    obs,
		logger: log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// RetrieveContext runs derive → search → filter → fetch → assemble for the
// given user messages, oldest first. It never fails: every stage degrades to
// an empty result, and the worst case is an empty context.
func (s *Service) RetrieveContext(ctx context.Context, userMessages []string) *Run {
	run := &Run{ID: uuid.NewString()}
	start := time.Now()

	ctx, span := s.obs.StartSpan(ctx, "pipeline.retrieve",
		attribute.String("run.id", run.ID),
		attribute.Int("messages", len(userMessages)),
	)
	defer span.End()

	log := s.logger.With(map[string]interface{}{"runId": run.ID})

	s.stage(ctx, metrics.StageDerive, func(ctx context.Context) int {
		queries, err := s.stages.Deriver.Derive(ctx, userMessages)
		if err != nil {
			log.Info("no queries derived, skipping retrieval", map[string]interface{}{"reason": err.Error()})
		}
		run.Queries = queries
		return len(queries)
	})

	if len(run.Queries) == 0 {
		s.finish(ctx, run, OutcomeNoQueries, start, log)
		return run
	}

	var perQuery [][]models.SearchResult
	s.stage(ctx, metrics.StageSearch, func(ctx context.Context) int {
		perQuery = s.stages.Searcher.Search(ctx, run.Queries)
		return len(models.FlattenURLs(perQuery))
	})

	s.stage(ctx, metrics.StageFilter, func(ctx context.Context) int {
		run.Links = s.stages.Filter.Filter(models.FlattenURLs(perQuery))
		return len(run.Links)
	})

	if len(run.Links) > 0 {
		s.stage(ctx, metrics.StageFetch, func(ctx context.Context) int {
			run.Documents = s.stages.Fetcher.FetchAll(ctx, run.Links)
			return len(run.Documents)
		})
	}

	s.stage(ctx, metrics.StageAssemble, func(ctx context.Context) int {
		run.Context = s.stages.Assembler.Assemble(run.Documents)
		return len(run.Documents)
	})

	s.finish(ctx, run, OutcomeOK, start, log)
	return run
}

// Answer retrieves context for the conversation and starts streaming the
// answer to its latest user message. The returned error is always a hard
// LLM_GENERATION_FAILED; the Run is returned either way.
func (s *Service) Answer(ctx context.Context, history *models.History) (*Run, <-chan models.AnswerDelta, error) {
	userTexts := history.UserTexts()
	run := s.RetrieveContext(ctx, userTexts)

	question := ""
	if len(userTexts) > 0 {
		question = userTexts[len(userTexts)-1]
	}

	ctx, span := s.obs.StartSpan(ctx, metrics.StageGenerate, attribute.String("run.id", run.ID))
	start := time.Now()
	deltas, err := s.stages.Answerer.Stream(ctx, question, run.Context)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		metrics.PipelineRuns.WithLabelValues(OutcomeFailed).Inc()
		return run, nil, err
	}

	out := make(chan models.AnswerDelta)
	go func() {
		defer close(out)
		defer span.End()
		for d := range deltas {
			if d.Err != nil {
				span.RecordError(d.Err)
				span.SetStatus(codes.Error, d.Err.Error())
				metrics.PipelineRuns.WithLabelValues(OutcomeFailed).Inc()
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(metrics.StageGenerate).Observe(elapsed.Seconds())
		s.obs.RecordStage(ctx, metrics.StageGenerate, elapsed)
	}()
	return run, out, nil
}

func (s *Service) stage(ctx context.Context, name string, fn func(ctx context.Context) int) {
	ctx, span := s.obs.StartSpan(ctx, name)
	defer span.End()

	start := time.Now()
	items := fn(ctx)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("items", items))
	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	metrics.StageItems.WithLabelValues(name).Observe(float64(items))
	s.obs.RecordStage(ctx, name, elapsed)
}

func (s *Service) finish(ctx context.Context, run *Run, outcome string, start time.Time, log logger.Logger) {
	run.Duration = time.Since(start)
	metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	s.obs.RecordRun(ctx, outcome, run.Duration)

	log.Info("context retrieved", map[string]interface{}{
		"outcome":    outcome,
		"queries":    len(run.Queries),
		"links":      len(run.Links),
		"documents":  len(run.Documents),
		"chars":      len([]rune(run.Context)),
		"durationMs": run.Duration.Milliseconds(),
	})
}
