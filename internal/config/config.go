package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"asynccalc/internal/calculator"
)

// DefaultEnvFiles are tried in order; the first one that exists is loaded.
var DefaultEnvFiles = []string{".env", "../.env", "../../.env"}

const defaultJWTSecret = "default-jwt-secret-for-calculator-app"

type Config struct {
	HTTPPort        string
	GRPCPort        string
	DBPath          string
	Workers         int
	MaxPending      int
	Retention       time.Duration
	CleanupInterval time.Duration
	Validation      calculator.NumberValidation
	LogLevel        zerolog.Level
	JWTSecret       string
	TokenTTL        time.Duration
}

// UsesDefaultSecret reports whether tokens are signed with the built-in development key.
func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

// LoadEnvFiles loads the first readable file into the process environment without
// overriding variables that are already set. It returns the loaded file or "".
func LoadEnvFiles(files ...string) string {
	for _, file := range files {
		if err := godotenv.Load(file); err == nil {
			return file
		}
	}
	return ""
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}
	cfg := Config{
		HTTPPort:        env.str("CALC_HTTP_PORT", "8080"),
		GRPCPort:        env.str("CALC_GRPC_PORT", "8081"),
		DBPath:          env.str("CALC_DB_PATH", "./calculator.db"),
		Workers:         env.integer("CALC_WORKERS", 4),
		MaxPending:      env.integer("CALC_MAX_PENDING", 100),
		Retention:       env.duration("CALC_RETENTION", 7*24*time.Hour),
		CleanupInterval: env.duration("CALC_CLEANUP_INTERVAL", 10*time.Minute),
		JWTSecret:       env.str("JWT_SECRET", defaultJWTSecret),
		TokenTTL:        env.duration("CALC_TOKEN_TTL", 60*time.Minute),
	}

	if raw := env.str("CALC_NUMBER_VALIDATION", "strict"); env.err == nil {
		v, err := calculator.ParseNumberValidation(raw)
		if err != nil {
			env.err = fmt.Errorf("CALC_NUMBER_VALIDATION: %w", err)
		}
		cfg.Validation = v
	}
	if raw := env.str("CALC_LOG_LEVEL", "info"); env.err == nil {
		level, err := zerolog.ParseLevel(raw)
		if err != nil {
			env.err = fmt.Errorf("CALC_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}
	if env.err != nil {
		return Config{}, env.err
	}

	switch {
	case cfg.Workers < 1:
		return Config{}, fmt.Errorf("CALC_WORKERS must be positive, got %d", cfg.Workers)
	case cfg.MaxPending < 0:
		return Config{}, fmt.Errorf("CALC_MAX_PENDING must not be negative, got %d", cfg.MaxPending)
	case cfg.Retention <= 0:
		return Config{}, fmt.Errorf("CALC_RETENTION must be positive, got %s", cfg.Retention)
	case cfg.CleanupInterval <= 0:
		return Config{}, fmt.Errorf("CALC_CLEANUP_INTERVAL must be positive, got %s", cfg.CleanupInterval)
	case cfg.TokenTTL <= 0:
		return Config{}, fmt.Errorf("CALC_TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	return cfg, nil
}

// envReader keeps the first parse error so defaults can be listed in one place.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}
