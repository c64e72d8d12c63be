// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageBadger   = "badger"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// Config holds every server setting
type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=5000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	StorageType   string `env:"STORAGE_TYPE,default=memory"`
	RedisURL      string `env:"REDIS_URL"`
	BadgerPath    string `env:"BADGER_PATH"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE,default=presencechat"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	InactivityThreshold time.Duration `env:"INACTIVITY_THRESHOLD,default=10s"`

	// Comma separated; "*" allows any origin
	CORSOrigins string `env:"CORS_ORIGINS,default=*"`
	// Applied to message listings that pass no limit
	DefaultMessageLimit *int `env:"DEFAULT_MESSAGE_LIMIT"`
}

// Load reads an optional dotenv file and then the environment.
// Variables already set in the environment win over the file.
// With no files given, a missing ./.env is not an error.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) > 0 {
		if err := godotenv.Load(dotenvFiles...); err != nil {
			return nil, fmt.Errorf("load dotenv: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings are usable together
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	case StorageBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH required when STORAGE_TYPE=badger"))
		}
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI required when STORAGE_TYPE=mongo"))
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN required when STORAGE_TYPE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_TYPE %q", c.StorageType))
	}

	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.InactivityThreshold <= 0 {
		errs = append(errs, errors.New("INACTIVITY_THRESHOLD must be positive"))
	}
	if c.DefaultMessageLimit != nil && *c.DefaultMessageLimit <= 0 {
		errs = append(errs, errors.New("DEFAULT_MESSAGE_LIMIT must be a positive integer"))
	}

	return errors.Join(errs...)
}

// AllowedOrigins splits CORSOrigins into a list
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// NewLogger builds the JSON logger at the configured level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
