// internal/workers/context-retrieval/fetch-content/config.go
package fetchcontent

import "time"

type Config struct {
	// Deadline applies to each link separately, measured from dispatch.
	Deadline time.Duration
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Deadline: 750 * time.Millisecond,
		Timeout:  10 * time.Second,
	}
}
