// cmd/context-engine/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"context-engine/internal/api"
	"context-engine/internal/common/camunda"
	"context-engine/internal/common/config"
	"context-engine/internal/common/database"
	"context-engine/internal/common/genai"
	commonhttp "context-engine/internal/common/http"
	"context-engine/internal/common/logger"
	"context-engine/internal/common/observability"
	"context-engine/internal/common/scraper"
	"context-engine/internal/common/websearch"
	"context-engine/internal/pipeline"
	assemblecontext "context-engine/internal/workers/context-retrieval/assemble-context"
	derivequeries "context-engine/internal/workers/context-retrieval/derive-queries"
	fetchcontent "context-engine/internal/workers/context-retrieval/fetch-content"
	filterlinks "context-engine/internal/workers/context-retrieval/filter-links"
	generateanswer "context-engine/internal/workers/context-retrieval/generate-answer"
	searchfanout "context-engine/internal/workers/context-retrieval/search-fanout"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting context engine", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	exporter := observability.ExporterNone
	if cfg.Tracing.Enabled {
		exporter = cfg.Tracing.Exporter
	}
	obs, err := observability.New(observability.Options{
		ServiceName:   cfg.Tracing.ServiceName,
		TraceExporter: exporter,
	})
	if err != nil {
		log.Warn("observability setup failed, continuing without otel", map[string]interface{}{"error": err.Error()})
		obs = observability.NewNoop()
	}

	checks := map[string]api.Checker{}

	// --- Search provider ---
	var searcher websearch.Searcher
	switch cfg.APIs.WebSearch.Provider {
	case config.SearchProviderElasticsearch:
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		checks["elasticsearch"] = esClient.Ping
		searcher = websearch.NewElasticsearchSearcher(esClient.Client, esClient.Index, cfg.APIs.WebSearch.ResultsPerQuery)
	default:
		searcher = websearch.NewGoogleSearcher(websearch.GoogleConfig{
			BaseURL:    cfg.APIs.WebSearch.BaseURL,
			APIKey:     cfg.APIs.WebSearch.APIKey,
			EngineID:   cfg.APIs.WebSearch.EngineID,
			MaxResults: cfg.APIs.WebSearch.ResultsPerQuery,
			Timeout:    config.GetDuration(cfg.APIs.WebSearch.Timeout),
		})
	}

	// --- Search cache ---
	if cfg.Cache.Enabled {
		redis := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 5, time.Second, log, "Redis connection")
		if err != nil {
			log.Warn("redis unavailable, search cache disabled", map[string]interface{}{"error": err.Error()})
			redis.Close()
		} else {
			defer redis.Close()
			checks["redis"] = redis.Ping
			searcher = websearch.NewCachedSearcher(searcher, redis.Client,
				config.GetDuration(cfg.Cache.TTL), cfg.Cache.KeyPrefix, log)
		}
	}

	// --- Content fetcher ---
	var fetcher fetchcontent.Fetcher
	switch cfg.APIs.Scraper.Mode {
	case config.ScraperModeRemote:
		fetcher = scraper.NewRemoteScraper(cfg.APIs.Scraper.BaseURL, cfg.APIs.Scraper.APIKey,
			cfg.APIs.Scraper.WordLimit, &http.Client{})
	default:
		userAgent := cfg.APIs.Scraper.UserAgent
		if userAgent == "" {
			userAgent = commonhttp.BrowserUserAgent
		}
		fetcher = scraper.NewDirectFetcher(
			commonhttp.NewClient(0,
				commonhttp.WithUserAgent(userAgent),
				commonhttp.WithMaxBodyBytes(cfg.APIs.Scraper.MaxBodyBytes),
			),
			cfg.APIs.Scraper.WordLimit,
		)
	}

	// --- Generation service ---
	genaiClient := genai.NewClient(genai.Config{
		BaseURL:         cfg.APIs.GenAI.BaseURL,
		APIKey:          cfg.APIs.GenAI.APIKey,
		Model:           cfg.APIs.GenAI.Model,
		Timeout:         config.GetDuration(cfg.APIs.GenAI.Timeout),
		BreakerFailures: uint32(cfg.APIs.GenAI.BreakerFailures),
		BreakerOpenTime: config.GetDuration(cfg.APIs.GenAI.BreakerOpenTime),
	}, nil, log)

	// --- Pipeline ---
	workers := pipeline.NewWorkers(pipeline.Settings{
		MaxDerivedQueries: cfg.Retrieval.MaxDerivedQueries,
		MaxSearchQueries:  cfg.Retrieval.MaxSearchQueries,
		FetchDeadline:     config.GetDuration(cfg.Retrieval.FetchTimeout),
		MaxTokens:         cfg.Retrieval.MaxTokens,
		CharsPerToken:     cfg.Retrieval.CharsPerToken,
		MaxCandidates:     cfg.Retrieval.MaxCandidates,
		Denylist:          cfg.Retrieval.Denylist,
		GenerateTimeout:   config.GetDuration(cfg.APIs.GenAI.Timeout),
	}, pipeline.Collaborators{
		Generator: genaiClient,
		Searcher:  searcher,
		Fetcher:   fetcher,
		Streamer:  genaiClient,
	}, log)

	if cfg.Retrieval.DenylistSource == config.DenylistSourcePostgres {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			log.Warn("postgres unavailable, using configured denylist", map[string]interface{}{"error": err.Error()})
		} else {
			defer pg.Close()
			checks["postgres"] = pg.Ping
			if err := workers.Filter.ReloadDenylist(ctx, filterlinks.NewPostgresDenylist(pg.DB)); err != nil {
				log.Warn("denylist load failed, using configured denylist", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	svc := pipeline.NewService(workers.Stages(), obs, log)

	// --- Zeebe job workers ---
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck

		handlers := map[string]worker.JobHandler{
			derivequeries.TaskType:   workers.Derive.Handle,
			searchfanout.TaskType:    workers.Search.Handle,
			filterlinks.TaskType:     workers.Filter.Handle,
			fetchcontent.TaskType:    workers.Fetch.Handle,
			assemblecontext.TaskType: workers.Assemble.Handle,
			generateanswer.TaskType:  workers.Generate.Handle,
		}
		for taskType, handle := range handlers {
			if !config.IsWorkerEnabled(cfg, taskType) {
				log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
				continue
			}
			wcfg := config.GetWorkerConfig(cfg, taskType)
			w := camunda.OpenWorker(zeebe.GetClient(), taskType, wcfg.MaxJobsActive,
				config.GetDuration(wcfg.Timeout), handle, log)
			defer w.Close()
		}
	}

	// --- HTTP API ---
	server := api.NewServer(svc, api.NewSessionStore(), checks, api.Config{
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	}, log)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Router(ctx),
		ReadHeaderTimeout: config.GetDuration(cfg.Server.ReadTimeout),
	}

	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("context engine stopped", nil)
}
