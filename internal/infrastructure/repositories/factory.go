package repositories

import (
	"context"

	"sportshub/internal/core/ports"
	"sportshub/internal/infrastructure/repositories/memory"
	redisrepo "sportshub/internal/infrastructure/repositories/redis"
	"sportshub/internal/infrastructure/repositories/sqldb"
	"sportshub/pkg/config"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryFactory picks the storage backend named by the config and
// falls back to memory when it cannot be reached.
type RepositoryFactory struct {
	driver      string
	redisClient *redis.Client
	db          *gorm.DB
	clock       clockwork.Clock
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, clock clockwork.Clock, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		driver: config.StorageMemory,
		clock:  clock,
		logger: logger,
	}

	// The Redis client is shared with the event bus and the poller lock,
	// so it is opened whenever Redis is enabled.
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis", "error", err)
		} else {
			factory.redisClient = client
		}
	}

	switch cfg.Storage.Driver {
	case config.StorageRedis:
		if factory.redisClient != nil {
			factory.driver = config.StorageRedis
		}
	case config.StoragePostgres, config.StorageSQLite:
		db, err := sqldb.Open(cfg)
		if err != nil {
			logger.Warnw("failed to open database", "driver", cfg.Storage.Driver, "error", err)
		} else {
			factory.db = db
			factory.driver = cfg.Storage.Driver
		}
	}

	if factory.driver != cfg.Storage.Driver {
		logger.Warnw("storage unavailable, falling back to memory repositories",
			"requested", cfg.Storage.Driver,
		)
	}
	logger.Infow("repositories ready", "driver", factory.driver)
	return factory
}

func (f *RepositoryFactory) Driver() string {
	return f.driver
}

// RedisClient returns the shared client, or nil when Redis is unavailable.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// DB returns the gorm handle, or nil for non-SQL drivers.
func (f *RepositoryFactory) DB() *gorm.DB {
	return f.db
}

func (f *RepositoryFactory) CreateGameRepository() ports.GameRepository {
	switch f.driver {
	case config.StorageRedis:
		return redisrepo.NewRedisGameRepository(f.redisClient, f.clock)
	case config.StoragePostgres, config.StorageSQLite:
		return sqldb.NewGormGameRepository(f.db, f.clock)
	}
	return memory.NewMemoryGameRepository(f.clock)
}

func (f *RepositoryFactory) CreateScreenShareRepository() ports.ScreenShareRepository {
	switch f.driver {
	case config.StorageRedis:
		return redisrepo.NewRedisScreenShareRepository(f.redisClient, f.clock)
	case config.StoragePostgres, config.StorageSQLite:
		return sqldb.NewGormScreenShareRepository(f.db, f.clock)
	}
	return memory.NewMemoryScreenShareRepository(f.clock)
}

func (f *RepositoryFactory) Close() error {
	var firstErr error
	if f.db != nil {
		firstErr = sqldb.Close(f.db)
	}
	if f.redisClient != nil {
		if err := redisrepo.CloseRedisClient(f.redisClient); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HealthCheck pings whichever backends are open.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	if f.db != nil {
		sqlDB, err := f.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return nil
}
