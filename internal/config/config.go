package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	CORS        CORSConfig
	Log         LogConfig
	Pricing     PricingConfig
	Revaluation RevaluationConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration.
// Path is used by the sqlite driver, DSN by postgres.
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// PricingConfig holds the price provider settings.
type PricingConfig struct {
	YahooBaseURL    string
	YahooRateLimit  int // requests per second
	EODHDBaseURL    string
	EODHDAPIKey     string
	EODHDRateLimit  int
	EODHDExchange   string // suffix for symbols without one, e.g. "US"
	HistoryProvider string // "eodhd" or "yahoo"
	Timeout         time.Duration
}

// RevaluationConfig holds the daily revaluation job settings.
// An empty Schedule disables the job; REVALUATION_SCHEDULE=off produces one.
type RevaluationConfig struct {
	Schedule string
	Workers  int
}

const (
	HistoryProviderEODHD = "eodhd"
	HistoryProviderYahoo = "yahoo"
)

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:   getEnv("DB_PATH", "./data/portfolio_valuation.db"),
			DSN:    os.Getenv("DB_DSN"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Pricing: PricingConfig{
			YahooBaseURL:  getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			EODHDBaseURL:  getEnv("EODHD_BASE_URL", "https://eodhd.com/api"),
			EODHDExchange: getEnv("EODHD_EXCHANGE", "US"),
		},
		Revaluation: RevaluationConfig{
			Schedule: getEnv("REVALUATION_SCHEDULE", "0 22 * * 1-5"),
		},
	}

	var err error
	if config.Pricing.YahooRateLimit, err = getEnvInt("YAHOO_RATE_LIMIT", 2); err != nil {
		return nil, err
	}
	if config.Pricing.EODHDRateLimit, err = getEnvInt("EODHD_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if config.Pricing.Timeout, err = getEnvDuration("PRICE_PROVIDER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if config.Revaluation.Workers, err = getEnvInt("REVALUATION_WORKERS", 4); err != nil {
		return nil, err
	}

	config.Pricing.EODHDAPIKey, err = resolveSecret("EODHD_API_KEY", "EODHD_API_KEY_ENC", os.Getenv("SECRET_KEY"))
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(config.Revaluation.Schedule, "off") {
		config.Revaluation.Schedule = ""
	}

	config.Pricing.HistoryProvider = strings.ToLower(os.Getenv("HISTORY_PROVIDER"))
	if config.Pricing.HistoryProvider == "" {
		config.Pricing.HistoryProvider = HistoryProviderYahoo
		if config.Pricing.EODHDAPIKey != "" {
			config.Pricing.HistoryProvider = HistoryProviderEODHD
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// Validate checks combinations of settings that cannot be checked per variable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Pricing.HistoryProvider {
	case HistoryProviderYahoo:
	case HistoryProviderEODHD:
		if c.Pricing.EODHDAPIKey == "" {
			return fmt.Errorf("HISTORY_PROVIDER=eodhd requires EODHD_API_KEY or EODHD_API_KEY_ENC")
		}
	default:
		return fmt.Errorf("unsupported HISTORY_PROVIDER %q", c.Pricing.HistoryProvider)
	}

	if c.Pricing.Timeout <= 0 {
		return fmt.Errorf("PRICE_PROVIDER_TIMEOUT must be positive")
	}
	if c.Pricing.YahooRateLimit <= 0 || c.Pricing.EODHDRateLimit <= 0 {
		return fmt.Errorf("provider rate limits must be positive")
	}
	if c.Revaluation.Workers <= 0 {
		return fmt.Errorf("REVALUATION_WORKERS must be positive")
	}
	if c.Revaluation.Schedule != "" {
		if _, err := cron.ParseStandard(c.Revaluation.Schedule); err != nil {
			return fmt.Errorf("invalid REVALUATION_SCHEDULE %q: %w", c.Revaluation.Schedule, err)
		}
	}

	return nil
}

// resolveSecret returns the plain value of plainKey when set, otherwise decrypts the
// fernet token stored in encKey with the given secret.
func resolveSecret(plainKey, encKey, secret string) (string, error) {
	if v := os.Getenv(plainKey); v != "" {
		return v, nil
	}

	token := os.Getenv(encKey)
	if token == "" {
		return "", nil
	}
	if secret == "" {
		return "", fmt.Errorf("%s is set but SECRET_KEY is empty", encKey)
	}

	return DecryptSecret(token, secret)
}

// DecryptSecret decrypts a fernet token with a base64 encoded fernet key.
func DecryptSecret(token, secret string) (string, error) {
	keys, err := fernet.DecodeKeys(secret)
	if err != nil {
		return "", fmt.Errorf("invalid SECRET_KEY: %w", err)
	}

	// A negative ttl skips the token age check.
	plain := fernet.VerifyAndDecrypt([]byte(token), -1, keys)
	if plain == nil {
		return "", fmt.Errorf("failed to decrypt secret: token invalid for SECRET_KEY")
	}

	return string(plain), nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return dur, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
