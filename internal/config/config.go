package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/utafrali/checkout-service/pkg/config"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (completion leases)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"CHECKOUT_REDIS_DB" envDefault:"2"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Downstream service URLs
	CartServiceURL      string `env:"CART_SERVICE_URL" envDefault:"http://localhost:8002"`
	OrderServiceURL     string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8003"`
	PaymentServiceURL   string `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:8005"`
	ShippingServiceURL  string `env:"SHIPPING_SERVICE_URL" envDefault:"http://localhost:8006"`
	InventoryServiceURL string `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:8007"`
	CampaignServiceURL  string `env:"CAMPAIGN_SERVICE_URL" envDefault:"http://localhost:8008"`
	TaxServiceURL       string `env:"TAX_SERVICE_URL" envDefault:"http://localhost:8009"`

	// Circuit breaker settings for downstream service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Session lifecycle
	SessionTTLMinutes    int `env:"SESSION_TTL_MINUTES" envDefault:"30"`
	SweepIntervalSeconds int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	RetentionHours       int `env:"SESSION_RETENTION_HOURS" envDefault:"168"`
	LeaseTTLSeconds      int `env:"COMPLETION_LEASE_TTL_SECONDS" envDefault:"30"`
	CompensationAttempts int `env:"COMPENSATION_MAX_ATTEMPTS" envDefault:"4"`

	// Per-step saga timeouts (seconds). Each saga step gets its own
	// context.WithTimeout to prevent a slow downstream from blocking
	// the entire checkout indefinitely.
	SagaInventoryTimeout int `env:"SAGA_INVENTORY_TIMEOUT" envDefault:"5"`
	SagaOrderTimeout     int `env:"SAGA_ORDER_TIMEOUT" envDefault:"5"`
	SagaPaymentTimeout   int `env:"SAGA_PAYMENT_TIMEOUT" envDefault:"10"`

	// Pricing
	FallbackTaxRate float64 `env:"FALLBACK_TAX_RATE" envDefault:"0.08"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be at least 1, got %d", c.SessionTTLMinutes)
	}
	if c.LeaseTTLSeconds < 1 {
		return fmt.Errorf("COMPLETION_LEASE_TTL_SECONDS must be at least 1, got %d", c.LeaseTTLSeconds)
	}
	if c.FallbackTaxRate < 0 || c.FallbackTaxRate > 1.0 {
		return fmt.Errorf("FALLBACK_TAX_RATE must be between 0.0 and 1.0, got %f", c.FallbackTaxRate)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	// Validate downstream service URLs.
	for name, rawURL := range map[string]string{
		"CART_SERVICE_URL":      c.CartServiceURL,
		"ORDER_SERVICE_URL":     c.OrderServiceURL,
		"PAYMENT_SERVICE_URL":   c.PaymentServiceURL,
		"SHIPPING_SERVICE_URL":  c.ShippingServiceURL,
		"INVENTORY_SERVICE_URL": c.InventoryServiceURL,
		"CAMPAIGN_SERVICE_URL":  c.CampaignServiceURL,
		"TAX_SERVICE_URL":       c.TaxServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RedisAddr returns the Redis host:port address.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
