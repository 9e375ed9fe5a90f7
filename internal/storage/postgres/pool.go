package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/migrations"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Connect opens a pgx pool for cfg, verifies it with a ping and applies the postgres migrations.
func Connect(ctx context.Context, cfg config.PostgresConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	cfg.ApplyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout.Duration

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Duration)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// sql-migrate needs database/sql, so migrations run over a short lived stdlib handle.
	sqlDB := stdlib.OpenDB(*poolCfg.ConnConfig)
	defer sqlDB.Close()

	if err := migrations.RunPostgres(log, sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	log.Infof("connected to postgres (max_conns=%d)", cfg.MaxConns)

	return pool, nil
}

// numeric converts n for a NUMERIC parameter; nil becomes NULL.
func numeric(n *big.Int) pgtype.Numeric {
	return pgtype.Numeric{Int: n, Valid: n != nil}
}

// parseBig parses a NUMERIC column selected as ::text. NULL yields nil.
func parseBig(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}

	n, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", *s)
	}

	return n, nil
}
