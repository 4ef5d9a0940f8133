// internal/workers/context-retrieval/search-fanout/config.go
package searchfanout

import "time"

type Config struct {
	// MaxQueries caps how many derived queries are searched. Kept below the
	// derivation cap to bound provider cost.
	MaxQueries int
	Timeout    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxQueries: 2,
		Timeout:    30 * time.Second,
	}
}
