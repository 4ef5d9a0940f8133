// internal/workers/context-retrieval/assemble-context/config.go
package assemblecontext

import "time"

type Config struct {
	MaxTokens     int
	CharsPerToken int
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxTokens:     1000,
		CharsPerToken: 4,
		Timeout:       5 * time.Second,
	}
}

// DocumentLimit is the per-document character bound.
func (c *Config) DocumentLimit() int {
	return c.MaxTokens * c.CharsPerToken
}
