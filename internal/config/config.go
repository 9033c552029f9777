package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const devJWTSecret = "dev-secret-change-in-production"

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

var (
	ErrDevSecretInProduction = errors.New("JWT_SECRET must be set in production environment")
	ErrUnknownStoreDriver    = errors.New("unknown STORE_DRIVER")
)

type Config struct {
	Port          string
	Env           string
	StoreDriver   string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	JWTExpiry     time.Duration
	LogFormat     string
}

// Load reads the configuration from the environment, falling back to
// development defaults.
func Load() Config {
	cfg := Config{
		Port:          getEnv("PORT", "5000"),
		Env:           getEnv("ENV", "development"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMySQL)),
		DatabaseDSN:   getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/readoai?parseTime=true"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "readoai"),
		JWTSecret:     getEnv("JWT_SECRET", devJWTSecret),
		JWTExpiry:     24 * time.Hour,
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "")),
	}

	if raw := os.Getenv("JWT_EXPIRY"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("invalid JWT_EXPIRY, using default", "value", raw, "default", cfg.JWTExpiry)
		} else {
			cfg.JWTExpiry = d
		}
	}

	return cfg
}

// Validate reports settings the server must not start with.
func (c Config) Validate() error {
	if c.Env == "production" && c.JWTSecret == devJWTSecret {
		return ErrDevSecretInProduction
	}
	switch c.StoreDriver {
	case DriverMySQL, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.StoreDriver)
	}
	return nil
}

// NewLogger builds the process logger. LOG_FORMAT picks "json" or "text";
// when unset, production logs JSON and everything else logs text.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	format := c.LogFormat
	if format == "" {
		format = "text"
		if c.Env == "production" {
			format = "json"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
