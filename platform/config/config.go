// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides the shared secret for service-to-service tokens on the
// event-ingestion endpoints.
type JWTConfig interface {
	GetServiceTokenSecret() string
}

// SchedulerConfig provides settings for the asynq client, worker and the
// queue dispatcher.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDispatchInterval() time.Duration
}

// AutomationConfig provides settings for the trigger engine and its queue.
type AutomationConfig interface {
	// GetQueueBackend selects the deferred queue store: "postgres" or "redis".
	GetQueueBackend() string
	// GetQueueRetention is the garbage-collection horizon for stale records.
	GetQueueRetention() time.Duration
}

// EmailConfig provides settings for SMTP email delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway client.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
}

// HTTPConfig provides settings for the HTTP server and its middleware.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowedOrigins() []string
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	DispatchInterval time.Duration

	QueueBackend   string
	QueueRetention time.Duration

	ServiceTokenSecret string

	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	SMSGatewayURL string
	SMSGatewayKey string
}

// Load reads configuration from the environment, with .env as a development
// convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		DispatchInterval: getDurationEnv("QUEUE_DISPATCH_INTERVAL", 5*time.Second),

		QueueBackend:   getEnv("AUTOMATION_QUEUE_BACKEND", "postgres"),
		QueueRetention: time.Duration(getIntEnv("AUTOMATION_QUEUE_RETENTION_HOURS", 72)) * time.Hour,

		ServiceTokenSecret: os.Getenv("SERVICE_TOKEN_SECRET"),

		CORSAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitPerSecond: getFloatEnv("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 40),

		EmailEnabled:     getBoolEnv("EMAIL_ENABLED", true),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Inspection Portal"),
		EmailFromAddress: os.Getenv("EMAIL_FROM_ADDRESS"),

		SMSGatewayURL: os.Getenv("SMS_GATEWAY_URL"),
		SMSGatewayKey: os.Getenv("SMS_GATEWAY_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.QueueBackend {
	case "postgres", "redis":
	default:
		return nil, fmt.Errorf("unknown AUTOMATION_QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	if cfg.QueueBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis queue backend")
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string             { return c.DatabaseURL }
func (c *Config) GetServiceTokenSecret() string      { return c.ServiceTokenSecret }
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetDispatchInterval() time.Duration { return c.DispatchInterval }
func (c *Config) GetQueueBackend() string            { return c.QueueBackend }
func (c *Config) GetQueueRetention() time.Duration   { return c.QueueRetention }
func (c *Config) GetHTTPAddr() string                { return c.HTTPAddr }
func (c *Config) GetCORSAllowedOrigins() []string    { return c.CORSAllowedOrigins }
func (c *Config) GetRateLimitPerSecond() float64     { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int             { return c.RateLimitBurst }
func (c *Config) GetEmailEnabled() bool              { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string                { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                   { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string            { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string            { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string           { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string        { return c.EmailFromAddress }
func (c *Config) GetSMSGatewayURL() string           { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string           { return c.SMSGatewayKey }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
