// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	APIs      APIsConfig              `mapstructure:"apis"`
	Retrieval RetrievalConfig         `mapstructure:"retrieval"`
	Cache     CacheConfig             `mapstructure:"cache"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Address         string          `mapstructure:"address"`
	ReadTimeout     int             `mapstructure:"read_timeout"`     // milliseconds
	ShutdownTimeout int             `mapstructure:"shutdown_timeout"` // milliseconds
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is a per-client token bucket. Zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// --- External Collaborators ---

// APIsConfig holds settings for the generation, search and scrape backends.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds

		// Consecutive failures before the breaker opens, and how long it stays open.
		BreakerFailures int `mapstructure:"breaker_failures"`
		BreakerOpenTime int `mapstructure:"breaker_open_time"` // milliseconds
	} `mapstructure:"genai"`

	WebSearch struct {
		Provider        string `mapstructure:"provider"` // google | elasticsearch
		BaseURL         string `mapstructure:"base_url"`
		APIKey          string `mapstructure:"api_key"`
		EngineID        string `mapstructure:"engine_id"`
		ResultsPerQuery int    `mapstructure:"results_per_query"`
		Timeout         int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"web_search"`

	Scraper struct {
		Mode         string `mapstructure:"mode"` // remote | direct
		BaseURL      string `mapstructure:"base_url"`
		APIKey       string `mapstructure:"api_key"`
		WordLimit    int    `mapstructure:"word_limit"`
		MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
		UserAgent    string `mapstructure:"user_agent"`
	} `mapstructure:"scraper"`
}

// RetrievalConfig holds the context pipeline knobs.
type RetrievalConfig struct {
	MaxDerivedQueries int      `mapstructure:"max_derived_queries"`
	MaxSearchQueries  int      `mapstructure:"max_search_queries"`
	FetchTimeout      int      `mapstructure:"fetch_timeout"` // milliseconds
	MaxTokens         int      `mapstructure:"max_tokens"`
	CharsPerToken     int      `mapstructure:"chars_per_token"`
	MaxCandidates     int      `mapstructure:"max_candidates"` // 0 = no cap
	Denylist          []string `mapstructure:"denylist"`
	DenylistSource    string   `mapstructure:"denylist_source"` // static | postgres
}

// CacheConfig controls the search result cache.
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	TTL       int    `mapstructure:"ttl"` // milliseconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Exporter    string `mapstructure:"exporter"` // stdout | none
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DefaultDenylist is the set of hosts whose pages rarely yield scrapeable text.
var DefaultDenylist = []string{
	"instagram.com",
	"facebook.com",
	"tiktok.com",
	"youtube.com",
	"twitter.com",
	"linkedin.com",
	"on3.com",
}
