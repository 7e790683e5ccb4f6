package sqldb

import (
	"fmt"

	"sportshub/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the SQL store named by cfg.Storage.Driver and migrates
// the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.PostgresDSN(),
			PreferSimpleProtocol: true,
		})
	case config.StorageSQLite:
		dialector = sqlite.Open(cfg.Storage.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Storage.Driver)
	}

	level := logger.Warn
	if cfg.Logging.Level == "debug" {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := registerTracing(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Storage.Driver == config.StoragePostgres {
		p := cfg.Storage.Postgres
		if p.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(p.MaxOpenConns)
		}
		if p.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(p.MaxIdleConns)
		}
		if p.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
		}
	} else {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&GameModel{}, &SessionModel{}, &ViewerModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
