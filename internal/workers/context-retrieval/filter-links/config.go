// internal/workers/context-retrieval/filter-links/config.go
package filterlinks

import "time"

type Config struct {
	Denylist      []string
	MaxCandidates int // 0 = no cap
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Denylist: []string{
			"instagram.com",
			"facebook.com",
			"tiktok.com",
			"youtube.com",
			"twitter.com",
			"linkedin.com",
			"on3.com",
		},
		Timeout: 5 * time.Second,
	}
}
