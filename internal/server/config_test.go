package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"SERVER_PORT",
	"ALLOWED_ORIGINS",
	"MAX_MESSAGE_SIZE",
	"RATE_LIMIT_BURST",
	"RATE_LIMIT_REFILL_INTERVAL",
	"STORE_DRIVER",
	"STORE_PATH",
	"HISTORY_LIMIT",
	"LOG_LEVEL",
	"SHUTDOWN_TIMEOUT",
}

// clearConfigEnv unsets every configuration variable for the duration of
// the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	clearConfigEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal(defaultConfig(), *cfg)
	req.Equal(*NewConfig(), *cfg)
}

func TestLoadConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	clearConfigEnv(t)
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, http://localhost:3000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("STORE_DRIVER", "Badger")
	t.Setenv("STORE_PATH", "/var/lib/messenger")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "1500ms")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal(Config{
		Port:           ":9090",
		AllowedOrigins: []string{"https://chat.example.com", "http://localhost:3000"},
		MaxMessageSize: 1024,
		RateLimit: RateLimitConfig{
			Burst:          3,
			RefillInterval: 2 * time.Second,
		},
		StoreDriver:     "badger",
		StorePath:       "/var/lib/messenger",
		HistoryLimit:    25,
		LogLevel:        "DEBUG",
		ShutdownTimeout: 1500 * time.Millisecond,
	}, *cfg)
}

func TestLoadConfig_Reads_Dotenv_File(t *testing.T) {
	req := require.New(t)
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("STORE_DRIVER=memory\nHISTORY_LIMIT=10\n"), 0o600))

	// Given the environment overrides one of the file's values
	t.Setenv("HISTORY_LIMIT", "20")

	cfg, err := LoadConfig(path)

	req.NoError(err)
	req.Equal("memory", cfg.StoreDriver)
	req.Empty(cfg.StorePath)
	req.Equal(20, cfg.HistoryLimit)
}

func TestLoadConfig_Rejects_Invalid_Values(t *testing.T) {
	cases := map[string]struct {
		key, value string
	}{
		"unknown driver":      {"STORE_DRIVER", "postgres"},
		"history too large":   {"HISTORY_LIMIT", "501"},
		"unknown level":       {"LOG_LEVEL", "chatty"},
		"non numeric integer": {"MAX_MESSAGE_SIZE", "big"},
		"malformed timeout":   {"SHUTDOWN_TIMEOUT", "abc"},
		"unitless interval":   {"RATE_LIMIT_REFILL_INTERVAL", "2"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(c.key, c.value)

			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

			require.Error(t, err)
		})
	}
}

func TestSanitizeConfig_Falls_Back_To_Defaults(t *testing.T) {
	req := require.New(t)

	cfg := sanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: -3, RefillInterval: -time.Second},
		HistoryLimit:   -5,
		AllowedOrigins: []string{" ", ""},
	})

	req.Equal(defaultConfig(), cfg)
	req.NoError(cfg.Validate())
}

func TestLoadConfig_Non_Positive_Durations_Use_Defaults(t *testing.T) {
	req := require.New(t)
	clearConfigEnv(t)
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0s")
	t.Setenv("SHUTDOWN_TIMEOUT", "-2s")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	req.NoError(err)
	req.Equal(defaultRefillInterval, cfg.RateLimit.RefillInterval)
	req.Equal(defaultShutdownTimeout, cfg.ShutdownTimeout)
}
