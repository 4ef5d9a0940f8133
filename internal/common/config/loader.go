// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DenylistSourceStatic   = "static"
	DenylistSourcePostgres = "postgres"

	SearchProviderGoogle        = "google"
	SearchProviderElasticsearch = "elasticsearch"

	ScraperModeRemote = "remote"
	ScraperModeDirect = "direct"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over
// it and applies env overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory, so tests in nested packages see the same file as main.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the environment when the files left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	setIfEmpty(&cfg.APIs.WebSearch.APIKey, "WEB_SEARCH_API_KEY")
	setIfEmpty(&cfg.APIs.WebSearch.EngineID, "WEB_SEARCH_ENGINE_ID")
	setIfEmpty(&cfg.APIs.Scraper.APIKey, "SCRAPER_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "context-engine"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 1
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "web_pages"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}

	// API defaults
	if cfg.APIs.GenAI.BaseURL == "" {
		cfg.APIs.GenAI.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-1.5-flash"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}
	if cfg.APIs.GenAI.BreakerFailures == 0 {
		cfg.APIs.GenAI.BreakerFailures = 5
	}
	if cfg.APIs.GenAI.BreakerOpenTime == 0 {
		cfg.APIs.GenAI.BreakerOpenTime = 30000
	}
	if cfg.APIs.WebSearch.Provider == "" {
		cfg.APIs.WebSearch.Provider = SearchProviderGoogle
	}
	if cfg.APIs.WebSearch.BaseURL == "" {
		cfg.APIs.WebSearch.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.APIs.WebSearch.ResultsPerQuery == 0 {
		cfg.APIs.WebSearch.ResultsPerQuery = 10
	}
	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 10000
	}
	if cfg.APIs.Scraper.Mode == "" {
		cfg.APIs.Scraper.Mode = ScraperModeDirect
	}
	if cfg.APIs.Scraper.WordLimit == 0 {
		cfg.APIs.Scraper.WordLimit = 1000
	}
	if cfg.APIs.Scraper.MaxBodyBytes == 0 {
		cfg.APIs.Scraper.MaxBodyBytes = 2 << 20
	}

	// Retrieval defaults
	if cfg.Retrieval.MaxDerivedQueries == 0 {
		cfg.Retrieval.MaxDerivedQueries = 3
	}
	if cfg.Retrieval.MaxSearchQueries == 0 {
		cfg.Retrieval.MaxSearchQueries = 2
	}
	if cfg.Retrieval.FetchTimeout == 0 {
		cfg.Retrieval.FetchTimeout = 750
	}
	if cfg.Retrieval.MaxTokens == 0 {
		cfg.Retrieval.MaxTokens = 1000
	}
	if cfg.Retrieval.CharsPerToken == 0 {
		cfg.Retrieval.CharsPerToken = 4
	}
	if cfg.Retrieval.Denylist == nil {
		cfg.Retrieval.Denylist = append([]string(nil), DefaultDenylist...)
	}
	if cfg.Retrieval.DenylistSource == "" {
		cfg.Retrieval.DenylistSource = DenylistSourceStatic
	}

	// Cache defaults
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 600000
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "search:"
	}

	// Tracing defaults
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "none"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.APIs.WebSearch.Provider {
	case SearchProviderGoogle:
	case SearchProviderElasticsearch:
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch search provider")
		}
	default:
		return fmt.Errorf("apis.web_search.provider must be %q or %q, got %q",
			SearchProviderGoogle, SearchProviderElasticsearch, cfg.APIs.WebSearch.Provider)
	}

	switch cfg.APIs.Scraper.Mode {
	case ScraperModeDirect:
	case ScraperModeRemote:
		if cfg.APIs.Scraper.BaseURL == "" {
			return fmt.Errorf("apis.scraper.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("apis.scraper.mode must be %q or %q, got %q",
			ScraperModeRemote, ScraperModeDirect, cfg.APIs.Scraper.Mode)
	}

	switch cfg.Retrieval.DenylistSource {
	case DenylistSourceStatic:
	case DenylistSourcePostgres:
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database are required for the postgres denylist source")
		}
	default:
		return fmt.Errorf("retrieval.denylist_source must be %q or %q, got %q",
			DenylistSourceStatic, DenylistSourcePostgres, cfg.Retrieval.DenylistSource)
	}

	if cfg.Cache.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when the cache is enabled")
	}

	if cfg.Retrieval.MaxDerivedQueries < 0 || cfg.Retrieval.MaxSearchQueries < 0 || cfg.Retrieval.MaxCandidates < 0 {
		return fmt.Errorf("retrieval limits must not be negative")
	}
	if cfg.Retrieval.FetchTimeout < 0 {
		return fmt.Errorf("retrieval.fetch_timeout must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
