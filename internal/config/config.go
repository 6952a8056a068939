package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Upstream API.
	BaseURL       string `env:"BASE_URL" validate:"required,url"`
	APIKey        string `env:"API_KEY" validate:"required"`
	SolarEndpoint string `env:"SOLAR_ENDPOINT" validate:"required"`
	WindEndpoint  string `env:"WIND_ENDPOINT" validate:"required"`

	OutputDir string `env:"OUTPUT_DIR" validate:"required"`

	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=text json"`

	// Outbound HTTP and resilience.
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	FetchMaxRetries       int           `env:"FETCH_MAX_RETRIES" validate:"gte=0"`
	FetchBackoff          time.Duration `env:"FETCH_BACKOFF" validate:"gt=0"`
	FetchBreakerThreshold int           `env:"FETCH_BREAKER_THRESHOLD" validate:"gte=1"`
	FetchRateLimit        float64       `env:"FETCH_RATE_LIMIT" validate:"gte=0"`

	// Daemon mode.
	ScheduleCron string `env:"SCHEDULE_CRON" validate:"required"`
	RunOnStart   bool   `env:"RUN_ON_START"`

	// In-memory run history retention.
	StoreMaxHistory int           `env:"STORE_MAX_HISTORY"` // max number of runs kept (0 = unlimited)
	StoreMaxAge     time.Duration `env:"STORE_MAX_AGE"`     // max age of runs (0 = unlimited)

	Port string `env:"PORT" validate:"required,numeric"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report env var names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.BaseURL = os.Getenv("BASE_URL")
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.SolarEndpoint = os.Getenv("SOLAR_ENDPOINT")
	cfg.WindEndpoint = os.Getenv("WIND_ENDPOINT")
	if cfg.BaseURL != "" && !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	cfg.OutputDir = getenvDefault("OUTPUT_DIR", "output")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchMaxRetries, err = getenvInt("FETCH_MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.FetchBackoff, err = getenvDuration("FETCH_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchBreakerThreshold, err = getenvInt("FETCH_BREAKER_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if v := os.Getenv("FETCH_RATE_LIMIT"); v != "" {
		if cfg.FetchRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid FETCH_RATE_LIMIT: %w", err)
		}
	}

	// Sundays 02:00 UTC, right after the reporting week closes.
	cfg.ScheduleCron = getenvDefault("SCHEDULE_CRON", "0 2 * * 0")
	if cfg.RunOnStart, err = getenvBool("RUN_ON_START", true); err != nil {
		return nil, err
	}

	// Store retention: roughly a year of weekly runs.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 52); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 8760*time.Hour); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
