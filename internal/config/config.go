package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MigrationsAuto     bool

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	StockAlertThreshold int

	GlobalVATMode pricing.VATMode
	FlatVATRate   decimal.Decimal
	CurrencyCode  string

	ScannerTimeout   time.Duration
	ScannerMinLength int

	IdempotencyTTL      time.Duration
	ScanRateLimitMax    int
	ScanRateLimitWindow time.Duration

	DocumentNumberLocation *time.Location
	DocumentListMaxLimit   int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	flatRate, err := decimal.NewFromString(valueOrDefault(k.String("POS_FLAT_VAT_RATE"), "21"))
	if err != nil || flatRate.IsNegative() {
		return nil, fmt.Errorf("POS_FLAT_VAT_RATE must be a non-negative number")
	}
	vatMode, err := pricing.ParseVATMode(k.String("POS_GLOBAL_VAT_MODE"))
	if err != nil {
		return nil, fmt.Errorf("POS_GLOBAL_VAT_MODE: %w", err)
	}
	loc, err := time.LoadLocation(valueOrDefault(k.String("DOCUMENT_NUMBER_TZ"), "Europe/Brussels"))
	if err != nil {
		return nil, fmt.Errorf("DOCUMENT_NUMBER_TZ: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrationsAuto:     parseBool(k.String("MIGRATIONS_AUTO")),

		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 50),
		CatalogMaxLimit:     parseInt(k.String("CATALOG_MAX_LIMIT"), 500),
		StockAlertThreshold: parseInt(k.String("STOCK_ALERT_THRESHOLD"), 10),

		GlobalVATMode: vatMode,
		FlatVATRate:   flatRate,
		CurrencyCode:  valueOrDefault(k.String("CURRENCY_CODE"), "EUR"),

		ScannerTimeout:   parseDuration(k.String("SCANNER_TIMEOUT"), "150ms"),
		ScannerMinLength: parseInt(k.String("SCANNER_MIN_LENGTH"), 3),

		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		ScanRateLimitMax:    parseInt(k.String("SCAN_RATE_LIMIT_MAX"), 120),
		ScanRateLimitWindow: parseDuration(k.String("SCAN_RATE_LIMIT_WINDOW"), "1m"),

		DocumentNumberLocation: loc,
		DocumentListMaxLimit:   parseInt(k.String("DOCUMENT_LIST_MAX_LIMIT"), 200),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// PricingEngine builds the totals engine described by the configuration.
func (c *Config) PricingEngine() pricing.Engine {
	return pricing.Engine{GlobalVATMode: c.GlobalVATMode, FlatVATRate: decimal.NewNullDecimal(c.FlatVATRate)}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
