package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/presencechat/internal/config"
	"github.com/mcoot/presencechat/internal/dependencies/clock"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/services/ledger"
	"github.com/mcoot/presencechat/internal/services/presence"
	"github.com/mcoot/presencechat/internal/services/registry"
	"github.com/mcoot/presencechat/internal/storage"
	badgerstorage "github.com/mcoot/presencechat/internal/storage/badger"
	"github.com/mcoot/presencechat/internal/storage/memory"
	mongostorage "github.com/mcoot/presencechat/internal/storage/mongo"
	pgstorage "github.com/mcoot/presencechat/internal/storage/postgres"
	redisstorage "github.com/mcoot/presencechat/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Services
	Registry *registry.Service
	Ledger   *ledger.Service
	Sweeper  *presence.Sweeper
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend, see the config.Storage* constants
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// BadgerPath is the badger data directory (required if StorageType is "badger")
	BadgerPath string
	// MongoConfig holds MongoDB settings (required if StorageType is "mongo")
	MongoConfig *mongostorage.Config
	// PostgresDSN is the URL-form connection string (required if StorageType is "postgres")
	PostgresDSN string
	// Presence controls sweep timing (optional)
	// If zero value, defaults to presence.DefaultConfig()
	Presence presence.Config
}

// ConfigFrom maps environment settings onto a factory Config
func ConfigFrom(c *config.Config, logger *slog.Logger) Config {
	cfg := Config{
		Logger:      logger,
		StorageType: c.StorageType,
		BadgerPath:  c.BadgerPath,
		PostgresDSN: c.PostgresDSN,
		Presence: presence.Config{
			Interval:            c.SweepInterval,
			InactivityThreshold: c.InactivityThreshold,
		},
	}
	if c.StorageType == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	}
	if c.StorageType == config.StorageMongo {
		mongoCfg := mongostorage.DefaultConfig()
		mongoCfg.URI = c.MongoURI
		mongoCfg.Database = c.MongoDatabase
		cfg.MongoConfig = &mongoCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	presenceCfg := cfg.Presence
	if presenceCfg.Interval == 0 || presenceCfg.InactivityThreshold == 0 {
		presenceCfg = presence.DefaultConfig()
	}

	return newWithDependencies(store, clock.New(), metrics.New(), presenceCfg, logger), nil
}

func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageMemory
	}

	switch storageType {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBadger:
		if cfg.BadgerPath == "" {
			return nil, errors.New("BadgerPath required when StorageType is badger")
		}
		store, err := badgerstorage.Open(cfg.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		store, err := mongostorage.New(ctx, *cfg.MongoConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("PostgresDSN required when StorageType is postgres")
		}
		store, err := pgstorage.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	m *metrics.Metrics,
	presenceCfg presence.Config,
	logger *slog.Logger,
) *App {
	registryService := registry.New(store, clk, logger)
	ledgerService := ledger.New(store, clk, m, logger)
	registryService.OnJoin(ledgerService.RecordJoin)
	sweeper := presence.New(registryService, ledgerService, clk, m, presenceCfg, logger)

	return &App{
		Storage:  store,
		Clock:    clk,
		Metrics:  m,
		Logger:   logger,
		Registry: registryService,
		Ledger:   ledgerService,
		Sweeper:  sweeper,
	}
}

// Close stops the sweeper and releases the store
func (a *App) Close() error {
	a.Sweeper.Stop()
	return a.Storage.Close()
}
