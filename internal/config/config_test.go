package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "./dist", cfg.StaticDir)
	assert.Equal(t, ":3000", cfg.StaticAddr())
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
	assert.True(t, cfg.DebugEnabled(), "debug defaults on in development")
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := LoadWith(env(map[string]string{
		"SEASKY_ADDR":            ":9090",
		"SEASKY_ENV":             "production",
		"SEASKY_STATIC_PORT":     "4000",
		"SEASKY_LOG_JSON":        "true",
		"SEASKY_LOG_BACKEND":     "zap",
		"SEASKY_ALLOWED_ORIGINS": "https://seasky.bi, https://admin.seasky.bi,",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 4000, cfg.StaticPort)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "zap", cfg.LogBackend)
	assert.False(t, cfg.DebugEnabled(), "debug defaults off in production")
	assert.Equal(t, []string{"https://seasky.bi", "https://admin.seasky.bi"}, cfg.AllowedOrigins)
}

func TestExplicitDebugWins(t *testing.T) {
	cfg, err := LoadWith(env(map[string]string{
		"SEASKY_ENV":   "production",
		"SEASKY_DEBUG": "1",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.DebugEnabled())
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seasky.yaml")
	data := "addr: \":7000\"\napi_url: https://api.seasky.bi\nsession_ttl: 1h\nlocale: en\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadWith(env(map[string]string{
		"SEASKY_CONFIG": path,
		"SEASKY_ADDR":   ":7001",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.Addr, "env beats file")
	assert.Equal(t, "https://api.seasky.bi", cfg.APIURL)
	assert.Equal(t, time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, "en", cfg.Locale)
}

func TestInvalidConfig(t *testing.T) {
	tests := map[string]map[string]string{
		"bad port":    {"SEASKY_STATIC_PORT": "http"},
		"port range":  {"SEASKY_STATIC_PORT": "70000"},
		"bad env":     {"SEASKY_ENV": "staging"},
		"bad backend": {"SEASKY_LOG_BACKEND": "logrus"},
		"bad ttl":     {"SEASKY_SESSION_TTL": "forever"},
		"bad bool":    {"SEASKY_LOG_JSON": "oui"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(env(vars))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadWith(env(map[string]string{"SEASKY_CONFIG": filepath.Join(t.TempDir(), "absent.yaml")}))
	require.Error(t, err)
}
