package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the story client service.
type Config struct {
	// Server settings
	Port     string `envconfig:"STORY_SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Gemini API settings
	GeminiBaseURL  string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModel    string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	RequestTimeout time.Duration `envconfig:"GEMINI_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"GEMINI_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"GEMINI_RETRY_BASE_DELAY" default:"1s"`
	// Secret field WITHOUT an envconfig tag, loaded from a secret file.
	GeminiAPIKey string

	// Client-side rate budget
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"60"`

	// Connectivity probe
	HealthCheckURL string `envconfig:"HEALTH_CHECK_URL" default:"http://localhost:8080/api/health-check"`

	// Redis settings for the persisted session state. When RedisAddr is
	// empty the service falls back to an in-memory store.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// GenerateURL returns the full generateContent endpoint URL for the
// configured model, with the API key as a query-string credential.
func (c *Config) GenerateURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(c.GeminiBaseURL, "/"), c.GeminiModel, url.QueryEscape(c.GeminiAPIKey))
}

// LoadConfig loads the configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load story-client configuration: %w", err)
	}

	// The API key may legitimately be absent at startup; the first request
	// then fails with a configuration-classified error instead.
	key, err := ReadSecret("gemini_api_key")
	if err != nil {
		key = os.Getenv("GEMINI_API_KEY")
	}
	cfg.GeminiAPIKey = key

	return &cfg, nil
}

// ReadSecret reads a secret from a file at the standard Docker Secrets path.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
