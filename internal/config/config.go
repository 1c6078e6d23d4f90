// Package config holds the storefront BFF's environment configuration.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kidsdesign/storefront/pkg/cache"
	pkgconfig "github.com/kidsdesign/storefront/pkg/config"
	"github.com/kidsdesign/storefront/pkg/httpclient"
	"github.com/kidsdesign/storefront/pkg/kafka"
	"github.com/kidsdesign/storefront/pkg/tracing"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// JWT_SECRET verifies shopper tokens issued by the remote API.
	JWTSecret string `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`

	// Remote storefront API
	CatalogAPIURL      string        `env:"CATALOG_API_URL" envDefault:"http://localhost:8000"`
	WishlistPath       string        `env:"WISHLIST_PATH" envDefault:"/api/v1/order/wishlist/"`
	CatalogPageSize    int           `env:"CATALOG_PAGE_SIZE" envDefault:"16"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"1"`

	// Circuit breaker around the remote API
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Page composition
	ComposeTimeout  time.Duration `env:"COMPOSE_TIMEOUT" envDefault:"8s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"15m"`
	SessionMaxCount int           `env:"SESSION_MAX_COUNT" envDefault:"10000"`

	// Redis category cache
	RedisEnabled     bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost        string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	CategoryCacheTTL time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"10m"`

	// Kafka page-view events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"3600"`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// Operational endpoints
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,10.0.0.0/8,172.16.0.0/12" envSeparator:","`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Environment != "development" && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	u, err := url.Parse(c.CatalogAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CATALOG_API_URL must be an absolute URL, got %q", c.CatalogAPIURL)
	}
	if c.CatalogPageSize < 1 {
		return fmt.Errorf("CATALOG_PAGE_SIZE must be positive, got %d", c.CatalogPageSize)
	}
	if c.ComposeTimeout <= 0 {
		return fmt.Errorf("COMPOSE_TIMEOUT must be positive, got %s", c.ComposeTimeout)
	}
	if c.SessionTTL < time.Second {
		return fmt.Errorf("SESSION_TTL must be at least 1s, got %s", c.SessionTTL)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when KAFKA_ENABLED is true")
	}
	return nil
}

// HTTPClient returns the outbound client settings for the remote API.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.UpstreamTimeout
	hc.MaxRetries = c.UpstreamMaxRetries
	return hc
}

// CircuitBreaker returns the breaker settings for a breaker called name.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     c.CBInterval,
		Timeout:      c.CBTimeout,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() cache.RedisConfig {
	rc := cache.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Kafka returns the producer settings for page-view events.
func (c *Config) Kafka() kafka.ProducerConfig {
	return kafka.DefaultProducerConfig(c.KafkaBrokers)
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		Insecure:       c.OTELInsecure,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
