// internal/workers/context-retrieval/generate-answer/config.go
package generateanswer

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
