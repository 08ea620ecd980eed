// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the messenger service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultBurst           = 20
	defaultRefillInterval  = time.Second
	defaultStoreDriver     = "sqlite"
	defaultStorePath       = "chat.db"
	defaultHistoryLimit    = 50
	defaultLogLevel        = "INFO"
	defaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `validate:"min=1"`
	RefillInterval time.Duration `validate:"gt=0"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string   `validate:"required"`
	AllowedOrigins  []string `validate:"dive,required"`
	MaxMessageSize  int64    `validate:"min=1"`
	RateLimit       RateLimitConfig
	StoreDriver     string        `validate:"oneof=sqlite badger memory"`
	StorePath       string        `validate:"required_unless=StoreDriver memory"`
	HistoryLimit    int           `validate:"min=1,max=500"`
	LogLevel        string        `validate:"oneof=DEBUG INFO WARN WARNING ERROR"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// envConfig mirrors the environment. It is kept flat so every variable keeps
// its plain name. Durations use Go syntax ("1s", "1500ms").
type envConfig struct {
	Port            string        `envconfig:"SERVER_PORT"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE"`
	Burst           int           `envconfig:"RATE_LIMIT_BURST"`
	RefillInterval  time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL"`
	StoreDriver     string        `envconfig:"STORE_DRIVER"`
	StorePath       string        `envconfig:"STORE_PATH"`
	HistoryLimit    int           `envconfig:"HISTORY_LIMIT"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		StoreDriver:     defaultStoreDriver,
		StorePath:       defaultStorePath,
		HistoryLimit:    defaultHistoryLimit,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// sanitizeConfig replaces missing or non-positive values with defaults and
// normalizes the free-form ones. Values that are present but wrong are left
// for validation to reject.
func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaultStoreDriver
	}
	cfg.StorePath = strings.TrimSpace(cfg.StorePath)
	if cfg.StorePath == "" && cfg.StoreDriver == defaultStoreDriver {
		cfg.StorePath = defaultStorePath
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.AllowedOrigins = parseOrigins(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaultConfig().AllowedOrigins
	}
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win over it.
func LoadConfig(dotenvFiles ...string) (*Config, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load(dotenvFiles...)

	var env envConfig
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := sanitizeConfig(Config{
		Port:           env.Port,
		AllowedOrigins: env.AllowedOrigins,
		MaxMessageSize: env.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          env.Burst,
			RefillInterval: env.RefillInterval,
		},
		StoreDriver:     env.StoreDriver,
		StorePath:       env.StorePath,
		HistoryLimit:    env.HistoryLimit,
		LogLevel:        env.LogLevel,
		ShutdownTimeout: env.ShutdownTimeout,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func parseOrigins(origins []string) []string {
	parts := make([]string, 0, len(origins))
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
	}
	return parts
}
