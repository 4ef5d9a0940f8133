// internal/workers/context-retrieval/derive-queries/config.go
package derivequeries

import "time"

type Config struct {
	MaxQueries int
	// Timeout bounds a job run on the Zeebe path; the in-process path relies
	// on the generation client's own timeout.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxQueries: 3,
		Timeout:    60 * time.Second,
	}
}
