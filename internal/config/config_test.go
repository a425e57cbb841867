package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{DataPath: "/var/lib/pbtracker"},
		Auth:    AuthConfig{AccessTokenDuration: time.Hour},
		Submit:  SubmitConfig{RateLimitPerMinute: 30, RateLimitBurst: 10, MaxAttempts: 3},
	}
}

// unsetEnv clears keys for the duration of the test. godotenv treats a variable
// set to "" as present, so t.Setenv(key, "") is not enough.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		prev, ok := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if ok {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_SubmitLimits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.Submit.RateLimitPerMinute = 0 }},
		{"negative burst", func(c *Config) { c.Submit.RateLimitBurst = -1 }},
		{"no attempts", func(c *Config) { c.Submit.MaxAttempts = 0 }},
		{"no token lifetime", func(c *Config) { c.Auth.AccessTokenDuration = 0 }},
		{"empty data path", func(c *Config) { c.Storage.DataPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	unsetEnv(t, "ENV", "LOG_LEVEL", "SERVER_PORT", "SUBMIT_RATE_LIMIT", "SUBMIT_RATE_BURST", "SUBMIT_MAX_ATTEMPTS", "CORS_ORIGINS", "ACCESS_TOKEN_DURATION", "SERVER_READ_TIMEOUT", "SERVER_IDLE_TIMEOUT")

	cfg, err := LoadConfig([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 30, cfg.Submit.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.Submit.RateLimitBurst)
	assert.Equal(t, 3, cfg.Submit.MaxAttempts)
	assert.Nil(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, filepath.Join(dir, "pbtracker.db"), cfg.Storage.DatabasePath())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=7000\nSUBMIT_RATE_BURST=4\nCORS_ORIGINS=https://a.example, https://b.example\n"), 0o600))

	unsetEnv(t, "ENV", "SERVER_PORT", "SUBMIT_RATE_BURST", "CORS_ORIGINS")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig([]string{"-data-path", dir, "-env-file", envFile, "-port", "9000"})
	require.NoError(t, err)

	// Flag beats .env.
	assert.Equal(t, "9000", cfg.Server.Port)
	// .env fills what the environment leaves empty.
	assert.Equal(t, 4, cfg.Submit.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	// Environment beats default.
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	unsetEnv(t, "ENV", "LOG_LEVEL")
	_, err := LoadConfig([]string{"-data-path", dir, "-env-file", filepath.Join(dir, "none"), "-read-timeout", "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_read_timeout")
}

func TestExpandDataPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{Storage: StorageConfig{DataPath: "~/runs"}}
	require.NoError(t, cfg.expandDataPath())
	assert.Equal(t, filepath.Join(home, "runs"), cfg.Storage.DataPath)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,, b ,"))
}
