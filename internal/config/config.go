package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton refreshed by the periodic config reload job
var globalConfig *Config

// Config holds all environment backed configuration for chat-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Auth
	JWKSURL             string        `env:"JWKS_URL"`
	OIDCDiscoveryURL    string        `env:"OIDC_DISCOVERY_URL"`
	Issuer              string        `env:"ISSUER,notEmpty"`
	Audience            string        `env:"AUDIENCE,notEmpty"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`

	// PostgreSQL
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN"`
	DBPostgresqlRead1DSN string `env:"DB_POSTGRESQL_READ1_DSN"`

	// Completion provider (OpenAI-compatible)
	CompletionBaseURL      string        `env:"COMPLETION_BASE_URL" envDefault:"http://localhost:8001/v1"`
	CompletionAPIKey       string        `env:"COMPLETION_API_KEY,notEmpty"`
	CompletionDefaultModel string        `env:"COMPLETION_DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	CompletionTimeout      time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"120s"`
	SystemPrompt           string        `env:"SYSTEM_PROMPT" envDefault:"You are a helpful assistant."`

	// Completion persistence retries
	PersistAttempts int           `env:"PERSIST_ATTEMPTS" envDefault:"3"`
	PersistBackoff  time.Duration `env:"PERSIST_BACKOFF" envDefault:"500ms"`

	// Rate limiting
	RateLimitQuota  int           `env:"RATE_LIMIT_QUOTA" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`

	// Background jobs
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"15m"`
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE" envDefault:"200"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"chat-api"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"chat"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWKSURL == "" && cfg.OIDCDiscoveryURL == "" {
		return nil, errors.New("either JWKS_URL or OIDC_DISCOVERY_URL must be provided")
	}

	if cfg.JWKSURL != "" {
		if _, err := url.ParseRequestURI(cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
		}
	}

	if cfg.OIDCDiscoveryURL != "" {
		if _, err := url.ParseRequestURI(cfg.OIDCDiscoveryURL); err != nil {
			return nil, fmt.Errorf("invalid OIDC_DISCOVERY_URL: %w", err)
		}
	}

	if _, err := url.ParseRequestURI(cfg.CompletionBaseURL); err != nil {
		return nil, fmt.Errorf("invalid COMPLETION_BASE_URL: %w", err)
	}

	if cfg.RateLimitQuota <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_QUOTA must be positive, got %d", cfg.RateLimitQuota)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// ResolveJWKSURL returns the JWKS endpoint using either the explicit JWKS_URL or the OIDC discovery document.
func (c *Config) ResolveJWKSURL(ctx context.Context) (string, error) {
	if c.JWKSURL != "" {
		return c.JWKSURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.OIDCDiscoveryURL, nil)
	if err != nil {
		return "", fmt.Errorf("oidc discovery request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch oidc discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oidc discovery unexpected status: %s", resp.Status)
	}

	var doc struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode oidc discovery: %w", err)
	}

	if doc.JWKSURL == "" {
		return "", errors.New("jwks_uri not found in discovery document")
	}

	return doc.JWKSURL, nil
}

// GetGlobal returns the global config instance.
func GetGlobal() *Config {
	return globalConfig
}

// GetEnvReloadedAt returns when the environment was last reloaded
func GetEnvReloadedAt() time.Time {
	if globalConfig != nil {
		return globalConfig.EnvReloadedAt
	}
	return time.Time{}
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
