package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps the poll loop cursor in a single PostgreSQL row.
type CheckpointStore struct {
	pool    *pgxpool.Pool
	genesis uint64
	log     *logger.Logger
}

func NewCheckpointStore(pool *pgxpool.Pool, genesis uint64, log *logger.Logger) *CheckpointStore {
	return &CheckpointStore{pool: pool, genesis: genesis, log: log}
}

func (s *CheckpointStore) Read(ctx context.Context) (uint64, error) {
	var height int64
	start := time.Now()
	err := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM checkpoint WHERE id = 1`).Scan(&height)
	metrics.DBQueryObserve("postgres", "read checkpoint", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.genesis, nil
	}
	if err != nil {
		return 0, storage.Unavailable("read checkpoint", err)
	}

	return uint64(height), nil
}

func (s *CheckpointStore) Write(ctx context.Context, height uint64) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoint (id, last_processed_block, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_processed_block = EXCLUDED.last_processed_block,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.last_processed_block >= checkpoint.last_processed_block
	`, int64(height), time.Now().Unix())
	metrics.DBQueryObserve("postgres", "write checkpoint", start, err)
	if err != nil {
		return storage.Unavailable("write checkpoint", err)
	}

	if tag.RowsAffected() == 0 {
		s.log.Warnf("ignored checkpoint regression to block %d", height)
		return nil
	}

	s.log.Debugf("checkpoint saved: block=%d", height)
	return nil
}
