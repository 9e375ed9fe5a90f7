package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/MarketIndexor/internal/db"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
)

//go:embed sqlite/001_checkpoint.sql
var sqlite001 string

//go:embed sqlite/002_projection.sql
var sqlite002 string

//go:embed postgres/001_checkpoint.sql
var postgres001 string

//go:embed postgres/002_projection.sql
var postgres002 string

// SQLite returns the migrations for the sqlite storage driver.
func SQLite() []db.Migration {
	return []db.Migration{
		{ID: "001_checkpoint.sql", SQL: sqlite001},
		{ID: "002_projection.sql", SQL: sqlite002},
	}
}

// Postgres returns the migrations for the postgres storage driver.
func Postgres() []db.Migration {
	return []db.Migration{
		{ID: "001_checkpoint.sql", SQL: postgres001},
		{ID: "002_projection.sql", SQL: postgres002},
	}
}

// RunSQLite applies the sqlite migrations to sqlDB.
func RunSQLite(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, db.DialectSQLite, SQLite())
}

// RunPostgres applies the postgres migrations to sqlDB.
func RunPostgres(log *logger.Logger, sqlDB *sql.DB) error {
	return db.RunMigrationsDB(log, sqlDB, db.DialectPostgres, Postgres())
}
