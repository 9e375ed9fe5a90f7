package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/MarketIndexor/internal/common"
	"github.com/goran-ethernal/MarketIndexor/internal/db"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/migrations"
	"github.com/goran-ethernal/MarketIndexor/internal/storage/postgres"
	"github.com/goran-ethernal/MarketIndexor/internal/storage/sqlite"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
)

// stores bundles the checkpoint and projection stores of the configured driver.
type stores struct {
	checkpoint  storage.CheckpointStore
	projection  storage.ProjectionStore
	maintenance db.Maintenance
	close       func()
}

func (s *stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStores connects to the configured backend and applies its migrations.
func openStores(ctx context.Context, cfg *config.Config, genesis uint64) (*stores, error) {
	storeLog := logger.NewComponentLoggerFromConfig(common.ComponentStore, cfg.Logging)
	checkpointLog := logger.NewComponentLoggerFromConfig(common.ComponentCheckpoint, cfg.Logging)

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := postgres.Connect(ctx, *cfg.Storage.Postgres, storeLog)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		return &stores{
			checkpoint:  postgres.NewCheckpointStore(pool, genesis, checkpointLog),
			projection:  postgres.NewProjectionStore(pool, storeLog),
			maintenance: db.NoOpMaintenance{},
			close:       pool.Close,
		}, nil

	default:
		sqlDB, err := db.NewSQLiteDBFromConfig(cfg.Storage.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		if err := migrations.RunSQLite(storeLog, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		maintenance := db.NewMaintenanceCoordinator(
			cfg.Storage.DB.Path,
			sqlDB,
			cfg.Storage.Maintenance,
			logger.NewComponentLoggerFromConfig(common.ComponentMaintenance, cfg.Logging),
		)

		return &stores{
			checkpoint:  sqlite.NewCheckpointStore(sqlDB, genesis, maintenance, checkpointLog),
			projection:  sqlite.NewProjectionStore(sqlDB, maintenance, storeLog),
			maintenance: maintenance,
			close:       closeDB(sqlDB, storeLog),
		}, nil
	}
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) func() {
	return func() {
		if err := sqlDB.Close(); err != nil {
			log.Warnf("Failed to close database: %v", err)
		}
	}
}
