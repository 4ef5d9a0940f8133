// internal/pipeline/workers.go
package pipeline

import (
	"time"

	"context-engine/internal/common/logger"
	assemblecontext "context-engine/internal/workers/context-retrieval/assemble-context"
	derivequeries "context-engine/internal/workers/context-retrieval/derive-queries"
	fetchcontent "context-engine/internal/workers/context-retrieval/fetch-content"
	filterlinks "context-engine/internal/workers/context-retrieval/filter-links"
	generateanswer "context-engine/internal/workers/context-retrieval/generate-answer"
	searchfanout "context-engine/internal/workers/context-retrieval/search-fanout"
)

// Collaborators are the external services the stages call.
type Collaborators struct {
	Generator derivequeries.Generator
	Searcher  searchfanout.Searcher
	Fetcher   fetchcontent.Fetcher
	Streamer  generateanswer.Streamer
}

// Settings are the retrieval knobs. Zero values keep each worker's default.
type Settings struct {
	MaxDerivedQueries int
	MaxSearchQueries  int
	FetchDeadline     time.Duration
	MaxTokens         int
	CharsPerToken     int
	MaxCandidates     int
	Denylist          []string
	GenerateTimeout   time.Duration
}

// Workers holds the concrete stage handlers. They serve both the in-process
// pipeline and, when enabled, Zeebe job workers.
type Workers struct {
	Derive   *derivequeries.Handler
	Search   *searchfanout.Handler
	Filter   *filterlinks.Handler
	Fetch    *fetchcontent.Handler
	Assemble *assemblecontext.Handler
	Generate *generateanswer.Handler
}

func NewWorkers(s Settings, c Collaborators, log logger.Logger) *Workers {
	deriveCfg := derivequeries.LoadConfig()
	setInt(&deriveCfg.MaxQueries, s.MaxDerivedQueries)

	searchCfg := searchfanout.LoadConfig()
	setInt(&searchCfg.MaxQueries, s.MaxSearchQueries)

	filterCfg := filterlinks.LoadConfig()
	filterCfg.MaxCandidates = s.MaxCandidates
	if s.Denylist != nil {
		filterCfg.Denylist = s.Denylist
	}

	fetchCfg := fetchcontent.LoadConfig()
	if s.FetchDeadline > 0 {
		fetchCfg.Deadline = s.FetchDeadline
	}

	assembleCfg := assemblecontext.LoadConfig()
	setInt(&assembleCfg.MaxTokens, s.MaxTokens)
	setInt(&assembleCfg.CharsPerToken, s.CharsPerToken)

	generateCfg := generateanswer.LoadConfig()
	if s.GenerateTimeout > 0 {
		generateCfg.Timeout = s.GenerateTimeout
	}

	return &Workers{
		Derive:   derivequeries.NewHandler(deriveCfg, c.Generator, &deriveLogger{log}),
		Search:   searchfanout.NewHandler(searchCfg, c.Searcher, &searchLogger{log}),
		Filter:   filterlinks.NewHandler(filterCfg, &filterLogger{log}),
		Fetch:    fetchcontent.NewHandler(fetchCfg, c.Fetcher, &fetchLogger{log}),
		Assemble: assemblecontext.NewHandler(assembleCfg, &assembleLogger{log}),
		Generate: generateanswer.NewHandler(generateCfg, c.Streamer, &generateLogger{log}),
	}
}

func (w *Workers) Stages() Stages {
	return Stages{
		Deriver:   w.Derive,
		Searcher:  w.Search,
		Filter:    w.Filter,
		Fetcher:   w.Fetch,
		Assembler: w.Assemble,
		Answerer:  w.Generate,
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// ==========================
// Logger adapters
// ==========================

type deriveLogger struct{ logger.Logger }

func (l *deriveLogger) With(fields map[string]interface{}) derivequeries.Logger {
	return &deriveLogger{l.Logger.With(fields)}
}

type searchLogger struct{ logger.Logger }

func (l *searchLogger) With(fields map[string]interface{}) searchfanout.Logger {
	return &searchLogger{l.Logger.With(fields)}
}

type filterLogger struct{ logger.Logger }

func (l *filterLogger) With(fields map[string]interface{}) filterlinks.Logger {
	return &filterLogger{l.Logger.With(fields)}
}

type fetchLogger struct{ logger.Logger }

func (l *fetchLogger) With(fields map[string]interface{}) fetchcontent.Logger {
	return &fetchLogger{l.Logger.With(fields)}
}

type assembleLogger struct{ logger.Logger }

func (l *assembleLogger) With(fields map[string]interface{}) assemblecontext.Logger {
	return &assembleLogger{l.Logger.With(fields)}
}

type generateLogger struct{ logger.Logger }

func (l *generateLogger) With(fields map[string]interface{}) generateanswer.Logger {
	return &generateLogger{l.Logger.With(fields)}
}
