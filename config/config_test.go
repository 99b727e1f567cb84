package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.EnableScenarios)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Hour, cfg.Redis.TTLDuration())
	assert.Equal(t, 15*time.Minute, cfg.Refresh.IntervalDuration())

	read, write, idle, shutdown := cfg.Server.Timeouts()
	assert.Equal(t, 15*time.Second, read)
	assert.Equal(t, 15*time.Second, write)
	assert.Equal(t, 60*time.Second, idle)
	assert.Equal(t, 30*time.Second, shutdown)
}

func TestLoad_FileFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "shift.yaml",
			content: `
environment: production
server:
  addr: ":9090"
  enable_scenarios: true
redis:
  addr: "localhost:6379"
allowance:
  strict_shift_types: true
  client_aliases:
    ACM: Acme
`,
		},
		{
			name: "toml",
			file: "shift.toml",
			content: `
environment = "production"

[server]
addr = ":9090"
enable_scenarios = true

[redis]
addr = "localhost:6379"

[allowance]
strict_shift_types = true

[allowance.client_aliases]
ACM = "Acme"
`,
		},
		{
			name: "json",
			file: "shift.json",
			content: `{
  "environment": "production",
  "server": {"addr": ":9090", "enable_scenarios": true},
  "redis": {"addr": "localhost:6379"},
  "allowance": {"strict_shift_types": true, "client_aliases": {"ACM": "Acme"}}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: A config file setting a subset of fields
			path := writeFile(t, tt.file, tt.content)

			// WHEN: Loading it
			cfg, err := Load(path)
			require.NoError(t, err)

			// THEN: File values win and unset fields keep their defaults
			assert.True(t, cfg.IsProduction())
			assert.Equal(t, ":9090", cfg.Server.Addr)
			assert.True(t, cfg.Server.EnableScenarios)
			assert.True(t, cfg.Redis.Enabled())
			assert.True(t, cfg.Allowance.StrictShiftTypes)
			assert.Equal(t, map[string]string{"ACM": "Acme"}, cfg.Allowance.ClientAliases)
			assert.Equal(t, "info", cfg.LogLevel)
			assert.Equal(t, "1h", cfg.Redis.TTL)
			assert.Equal(t, "shift_allowance.db", cfg.Database.Path)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// GIVEN: A file and SHIFT_* variables disagreeing
	path := writeFile(t, "shift.yaml", "server:\n  addr: \":9090\"\n")
	t.Setenv("SHIFT_ADDR", ":7070")
	t.Setenv("SHIFT_DB_PATH", ":memory:")
	t.Setenv("SHIFT_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SHIFT_REDIS_DB", "2")
	t.Setenv("SHIFT_REFRESH_DISABLED", "true")
	t.Setenv("SHIFT_CACHE_TTL", "5m")

	// WHEN: Loading
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN: The environment wins
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Refresh.Disabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTLDuration())
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "3000")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "error accessing config file")
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorContains(t, err, "is a directory")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "shift.ini", "addr=:80"))
		assert.ErrorContains(t, err, "unsupported config file format: .ini")
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeFile(t, "shift.toml", "[server\naddr ="))
		assert.ErrorContains(t, err, "error parsing TOML file")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("SHIFT_ENV", "staging")
		t.Setenv("SHIFT_REFRESH_INTERVAL", "soon")
		_, err := Load("")
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorContains(t, err, "environment must be development or production")
		assert.ErrorContains(t, err, "refresh.interval must be a positive duration")
	})
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Database.Path = ""
	cfg.Redis.DB = -1
	cfg.Server.ShutdownTimeout = "0s"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, msg := range []string{
		`log_level "loud"`,
		"database.path is required",
		"redis.db must be >= 0",
		"server.shutdown_timeout must be a positive duration",
	} {
		assert.ErrorContains(t, err, msg)
	}
}
