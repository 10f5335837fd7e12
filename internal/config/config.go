package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/auth"
	"github.com/BurntSushi/toml"
)

// Config agrupa toda la configuración de la API.
type Config struct {
	Env           string           `toml:"env"`
	LogLevel      string           `toml:"log_level"`
	Currency      string           `toml:"currency"`
	ProvidersFile string           `toml:"providers_file"`
	Server        ServerConfig     `toml:"server"`
	Database      DatabaseConfig   `toml:"database"`
	Auth          AuthConfig       `toml:"auth"`
	SMTP          SMTPConfig       `toml:"smtp"`
	Securities    SecuritiesConfig `toml:"securities"`
	OCR           OCRConfig        `toml:"ocr"`
	Webhooks      WebhookConfig    `toml:"webhooks"`
	Recurring     RecurringConfig  `toml:"recurring"`
}

type ServerConfig struct {
	Port        string   `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
}

type AuthConfig struct {
	JWTSecret          string   `toml:"jwt_secret,omitempty"`
	RefreshTokenSecret string   `toml:"refresh_token_secret,omitempty"`
	AccessTokenExpiry  string   `toml:"access_token_expiry"`
	RefreshTokenExpiry string   `toml:"refresh_token_expiry"`
	CookieDomain       string   `toml:"cookie_domain,omitempty"`
	APIKeys            []string `toml:"api_keys,omitempty"`
}

type SMTPConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
	User string `toml:"user"`
	Pass string `toml:"pass,omitempty"`
	From string `toml:"from"`
}

// Configured indica si hay datos suficientes para enviar correos reales.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Pass != ""
}

type SearchLimitConfig struct {
	MaxSearches      int  `toml:"max_searches"`
	ExpirationHours  int  `toml:"expiration_hours"`
	EnableExpiration bool `toml:"enable_expiration"`
}

type SecuritiesConfig struct {
	EODHDAPIKey        string            `toml:"eodhd_api_key,omitempty"`
	AlphaVantageAPIKey string            `toml:"alpha_vantage_api_key,omitempty"`
	CacheDir           string            `toml:"cache_dir"`
	EODHD              SearchLimitConfig `toml:"eodhd"`
	AlphaVantage       SearchLimitConfig `toml:"alpha_vantage"`
}

type OCRConfig struct {
	APIKey string `toml:"api_key,omitempty"`
	Model  string `toml:"model"`
}

type WebhookConfig struct {
	Secret string `toml:"secret,omitempty"`
}

type RecurringConfig struct {
	Interval string `toml:"interval"`
}

// Default devuelve la configuración por defecto.
func Default() Config {
	limit := SearchLimitConfig{MaxSearches: 5, ExpirationHours: 24}
	return Config{
		Env:           "development",
		LogLevel:      "info",
		Currency:      "GBP",
		ProvidersFile: "config/providers.yaml",
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			URL:    "database/finance.db",
		},
		Auth: AuthConfig{
			AccessTokenExpiry:  "15m",
			RefreshTokenExpiry: "30d",
		},
		Securities: SecuritiesConfig{
			EODHD:        limit,
			AlphaVantage: limit,
		},
		OCR:       OCRConfig{Model: "gemini-2.5-flash"},
		Recurring: RecurringConfig{Interval: "1h"},
	}
}

// Load lee el archivo TOML (si existe) y aplica las variables de entorno encima.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Currency, "DEFAULT_CURRENCY")
	setString(&cfg.ProvidersFile, "PROVIDERS_FILE")

	setString(&cfg.Server.Port, "PORT")
	setList(&cfg.Server.CORSOrigins, "CORS_ORIGINS")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")
	setString(&cfg.Auth.AccessTokenExpiry, "ACCESS_TOKEN_EXPIRY")
	setString(&cfg.Auth.RefreshTokenExpiry, "REFRESH_TOKEN_EXPIRY")
	setString(&cfg.Auth.CookieDomain, "COOKIE_DOMAIN")
	setList(&cfg.Auth.APIKeys, "API_KEYS")

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.User, "SMTP_USER")
	setString(&cfg.SMTP.Pass, "SMTP_PASS")
	setString(&cfg.SMTP.From, "FROM_EMAIL")

	setString(&cfg.Securities.EODHDAPIKey, "EODHD_API_KEY")
	setString(&cfg.Securities.AlphaVantageAPIKey, "ALPHA_VANTAGE_API_KEY")
	setString(&cfg.Securities.CacheDir, "SECURITIES_CACHE_DIR")
	setSearchLimit(&cfg.Securities.EODHD, "EODHD")
	setSearchLimit(&cfg.Securities.AlphaVantage, "ALPHA_VANTAGE")

	setString(&cfg.OCR.APIKey, "GEMINI_API_KEY")
	setString(&cfg.OCR.Model, "OCR_MODEL")
	setString(&cfg.Webhooks.Secret, "WEBHOOK_SECRET")
	setString(&cfg.Recurring.Interval, "RECURRING_INTERVAL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setSearchLimit(dst *SearchLimitConfig, prefix string) {
	if n, err := strconv.Atoi(os.Getenv(prefix + "_MAX_SEARCHES")); err == nil {
		dst.MaxSearches = n
	}
	if n, err := strconv.Atoi(os.Getenv(prefix + "_SEARCH_EXPIRATION_HOURS")); err == nil {
		dst.ExpirationHours = n
	}
	if v, ok := os.LookupEnv(prefix + "_ENABLE_SEARCH_EXPIRATION"); ok {
		dst.EnableExpiration = v == "true"
	}
}

// IsProduction activa cookies seguras y logs en JSON.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// RecurringInterval devuelve 0 cuando el procesador automático está desactivado.
func (c Config) RecurringInterval() (time.Duration, error) {
	if c.Recurring.Interval == "" || c.Recurring.Interval == "0" {
		return 0, nil
	}
	return time.ParseDuration(c.Recurring.Interval)
}

var cookieDomainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{1,61}[a-zA-Z0-9](?:\.[a-zA-Z]{2,})+$`)

// ValidateAuth junta todos los problemas de configuración de auth en un solo error.
func (c Config) ValidateAuth() error {
	var problems []string

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET: Required for signing access tokens")
	}
	if c.Auth.RefreshTokenSecret == "" {
		problems = append(problems, "REFRESH_TOKEN_SECRET: Required for signing refresh tokens")
	}
	if _, err := auth.ParseTimeString(c.Auth.AccessTokenExpiry); err != nil {
		problems = append(problems, "ACCESS_TOKEN_EXPIRY: "+err.Error())
	}
	if _, err := auth.ParseTimeString(c.Auth.RefreshTokenExpiry); err != nil {
		problems = append(problems, "REFRESH_TOKEN_EXPIRY: "+err.Error())
	}
	if c.Auth.CookieDomain != "" && !cookieDomainRegex.MatchString(c.Auth.CookieDomain) {
		problems = append(problems, "COOKIE_DOMAIN: Must be a valid domain name (e.g., 'example.com')")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid auth environment variables:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
