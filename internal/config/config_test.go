package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "15m", cfg.Auth.AccessTokenExpiry)
	assert.Equal(t, "30d", cfg.Auth.RefreshTokenExpiry)
	assert.Equal(t, 5, cfg.Securities.EODHD.MaxSearches)
	assert.Equal(t, "GBP", cfg.Currency)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
env = "production"

[server]
port = "9000"
cors_origins = ["https://app.example.com"]

[database]
driver = "postgres"
url = "postgres://localhost/finance"

[securities.eodhd]
max_searches = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("API_KEYS", "one, two ,")
	t.Setenv("ALPHA_VANTAGE_ENABLE_SEARCH_EXPIRATION", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Securities.EODHD.MaxSearches)
	assert.True(t, cfg.Securities.AlphaVantage.EnableExpiration)
	assert.Equal(t, []string{"one", "two"}, cfg.Auth.APIKeys)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("env = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateAuth(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateAuth()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET")

	cfg.Auth.JWTSecret = "access"
	cfg.Auth.RefreshTokenSecret = "refresh"
	assert.NoError(t, cfg.ValidateAuth())

	cfg.Auth.AccessTokenExpiry = "2w"
	cfg.Auth.CookieDomain = "not a domain"
	err = cfg.ValidateAuth()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_EXPIRY")
	assert.Contains(t, err.Error(), "COOKIE_DOMAIN")

	cfg.Auth.AccessTokenExpiry = "1h"
	cfg.Auth.CookieDomain = "finance.example.com"
	assert.NoError(t, cfg.ValidateAuth())
}

func TestRecurringInterval(t *testing.T) {
	cfg := Default()
	d, err := cfg.RecurringInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	cfg.Recurring.Interval = "0"
	d, err = cfg.RecurringInterval()
	require.NoError(t, err)
	assert.Zero(t, d)

	cfg.Recurring.Interval = "soon"
	_, err = cfg.RecurringInterval()
	assert.Error(t, err)
}
