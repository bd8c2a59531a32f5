package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Upstream completion API
	AnthropicAPIKey      string
	AnthropicAPIKeyParam string
	AnthropicBaseURL     string
	Model                string
	MaxTokens            int
	UpstreamTimeout      time.Duration
	UpstreamMaxRetries   int

	// Usage ledger
	UsageTable string

	// Local server
	Port string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Terminal client
	RelayURL string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from any key lookup, e.g. os.Getenv.
func FromLookup(get func(string) string) Config {
	env := lookup(get)
	return Config{
		AnthropicAPIKey:      env.str("ANTHROPIC_API_KEY", ""),
		AnthropicAPIKeyParam: env.str("ANTHROPIC_API_KEY_PARAM", ""),
		AnthropicBaseURL:     env.str("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		Model:                env.str("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		MaxTokens:            env.num("ANTHROPIC_MAX_TOKENS", 2048),
		UpstreamTimeout:      time.Duration(env.num("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		UpstreamMaxRetries:   env.num("UPSTREAM_MAX_RETRIES", 0),
		UsageTable:           env.str("USAGE_TABLE", ""),
		Port:                 env.str("PORT", "8080"),
		LogLevel:             env.str("LOG_LEVEL", "info"),
		LogFormat:            env.str("LOG_FORMAT", "json"),
		LogFile:              env.str("LOG_FILE", ""),
		RelayURL:             env.str("CHAT_RELAY_URL", "http://localhost:8080/api/chat"),
	}
}

type lookup func(string) string

func (l lookup) str(key, def string) string {
	v := strings.TrimSpace(l(key))
	if v == "" {
		return def
	}
	return v
}

func (l lookup) num(key string, def int) int {
	v := strings.TrimSpace(l(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
