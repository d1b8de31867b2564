// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	GRPCHealthPort  string // empty disables the gRPC health server
	FrontendURL     string
	DBPath          string
	SessionTTL      time.Duration
	LogLevel        string
	OperatorToken   string // guards the escalation queue when set
	OpenAI          OpenAIConfig
	Chat            ChatConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// OpenAIConfig configures the completion provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	DefaultModel   string
	RequestTimeout time.Duration
}

// ChatConfig controls conversation behavior.
type ChatConfig struct {
	Provider           string // "openai" or "scripted"
	PrimingMode        string // "merged" or "legacy"
	MaxRequestBodySize int64
	MaxMessageLength   int
}

// RateLimitConfig bounds chat turns per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "9090"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/handoff.db"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 60*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OperatorToken:  getEnv("OPERATOR_TOKEN", ""),
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			DefaultModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
			RequestTimeout: getEnvDuration("OPENAI_REQUEST_TIMEOUT", 60*time.Second),
		},
		Chat: ChatConfig{
			Provider:           strings.ToLower(getEnv("COMPLETION_PROVIDER", "openai")),
			PrimingMode:        getEnv("PRIMING_MODE", "merged"),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
			MaxMessageLength:   getEnvInt("MAX_MESSAGE_LENGTH", 4000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing OPENAI_API_KEY is not a configuration error: the chat reports
// it to the user on each turn instead.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	switch c.Chat.Provider {
	case "openai", "scripted":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be openai or scripted, got %q", c.Chat.Provider)
	}
	switch strings.ToLower(c.Chat.PrimingMode) {
	case "merged", "legacy":
	default:
		return fmt.Errorf("PRIMING_MODE must be merged or legacy, got %q", c.Chat.PrimingMode)
	}
	if c.OpenAI.DefaultModel == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	if c.Chat.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins derived from FrontendURL.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() || c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
