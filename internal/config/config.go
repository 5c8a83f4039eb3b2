// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Loyalty   LoyaltyConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"LOYALTY_HTTP_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"LOYALTY_HTTP_READ_TIMEOUT,default=10s"`
	WriteTimeout    time.Duration `env:"LOYALTY_HTTP_WRITE_TIMEOUT,default=15s"`
	ShutdownTimeout time.Duration `env:"LOYALTY_SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig is used when the postgres backend is selected.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE,default=true"`
}

// RedisConfig enables the distributed per-user lock when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,default=0"`
	LockTTL  time.Duration `env:"REDIS_LOCK_TTL,default=10s"`
}

// LoggingConfig mirrors logger.LoggingConfig with environment bindings.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=loyalty"`
}

// LoyaltyConfig holds the scan processing settings.
type LoyaltyConfig struct {
	Storage         string        `env:"LOYALTY_STORAGE,default=memory"`
	CatalogFile     string        `env:"LOYALTY_CATALOG_FILE"`
	AllowTestStore  bool          `env:"LOYALTY_ALLOW_TEST_STORE,default=false"`
	StrictStores    bool          `env:"LOYALTY_STRICT_STORES,default=true"`
	DuplicateWindow time.Duration `env:"LOYALTY_DUPLICATE_WINDOW,default=24h"`
}

// RateLimitConfig throttles clients by address.
type RateLimitConfig struct {
	Enabled           bool          `env:"RATE_LIMIT_ENABLED,default=true"`
	RequestsPerSecond float64       `env:"RATE_LIMIT_RPS,default=10"`
	Burst             int           `env:"RATE_LIMIT_BURST,default=20"`
	IdleTTL           time.Duration `env:"RATE_LIMIT_IDLE_TTL,default=10m"`
	CleanupSchedule   string        `env:"RATE_LIMIT_CLEANUP_SCHEDULE,default=@every 5m"`
}

// CORSConfig lists allowed origins, comma separated.
type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

// Origins splits AllowedOrigins.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Logger converts the settings for pkg/logger.
func (c LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePrefix: c.FilePrefix,
	}
}

// Load reads an optional env file (LOYALTY_ENV_FILE, default ".env") and
// decodes the environment.
func Load() (*Config, error) {
	envFile := os.Getenv("LOYALTY_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Loyalty.Storage = strings.ToLower(strings.TrimSpace(cfg.Loyalty.Storage))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Loyalty.Storage {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("DATABASE_URL is required when LOYALTY_STORAGE=postgres")
		}
	default:
		return fmt.Errorf("unsupported LOYALTY_STORAGE %q (want memory or postgres)", c.Loyalty.Storage)
	}
	if c.Loyalty.DuplicateWindow <= 0 {
		return fmt.Errorf("LOYALTY_DUPLICATE_WINDOW must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive RATE_LIMIT_RPS and RATE_LIMIT_BURST")
	}
	return nil
}
