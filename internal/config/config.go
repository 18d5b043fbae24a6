package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/nerdbug/user-service/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the user service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`

	// PostgreSQL
	PostgresHost    string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort    int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser    string        `env:"POSTGRES_USER" envDefault:"nerdbug"`
	PostgresPass    string        `env:"POSTGRES_PASSWORD" envDefault:"nerdbug_secret"`
	PostgresDB      string        `env:"POSTGRES_DB" envDefault:"user_db"`
	PostgresSSL     string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns      int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLife   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdle   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiry   time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"user-service"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"user-service-clients"`

	// Password policy
	BcryptCost        int `env:"BCRYPT_COST" envDefault:"10"`
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// pprof endpoints are only served to these CIDRs. Empty means disabled.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// Tracing
	TracingEnabled  bool    `env:"OTEL_TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"OTEL_TRACE_SAMPLE_RATE" envDefault:"1.0"`
	ServiceVersion  string  `env:"SERVICE_VERSION" envDefault:"0.1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("invalid bcrypt cost: %d", cfg.BcryptCost)
	}
	if cfg.MinPasswordLength < 1 {
		return nil, fmt.Errorf("invalid minimum password length: %d", cfg.MinPasswordLength)
	}

	// Outside development the JWT secret must be set explicitly and be
	// long enough to resist brute force against HS256.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
