package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/db"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/russross/meddler"
)

// Compile-time check to ensure CheckpointStore implements storage.CheckpointStore.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

type checkpointRow struct {
	ID                 int64  `meddler:"id"`
	LastProcessedBlock uint64 `meddler:"last_processed_block"`
	UpdatedAt          int64  `meddler:"updated_at"`
}

// CheckpointStore keeps the poll loop cursor in a single row with id = 1.
type CheckpointStore struct {
	db          *sql.DB
	genesis     uint64
	maintenance db.Maintenance
	log         *logger.Logger
}

// NewCheckpointStore creates a checkpoint store that reports genesis until a height is written.
func NewCheckpointStore(sqlDB *sql.DB, genesis uint64, maintenance db.Maintenance, log *logger.Logger) *CheckpointStore {
	if maintenance == nil {
		maintenance = db.NoOpMaintenance{}
	}

	return &CheckpointStore{
		db:          sqlDB,
		genesis:     genesis,
		maintenance: maintenance,
		log:         log,
	}
}

// Read returns the last processed block, or the genesis height when no row exists.
func (s *CheckpointStore) Read(ctx context.Context) (uint64, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if err := ctx.Err(); err != nil {
		return 0, storage.Unavailable("read checkpoint", err)
	}

	var row checkpointRow
	start := time.Now()
	err := meddler.QueryRow(s.db, &row, `SELECT * FROM checkpoint WHERE id = 1`)
	metrics.DBQueryObserve("sqlite", "read checkpoint", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return s.genesis, nil
	}
	if err != nil {
		return 0, storage.Unavailable("read checkpoint", err)
	}

	return row.LastProcessedBlock, nil
}

// Write upserts the checkpoint. The stored value never moves backwards.
func (s *CheckpointStore) Write(ctx context.Context, height uint64) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, last_processed_block, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_processed_block = excluded.last_processed_block,
			updated_at = excluded.updated_at
		WHERE excluded.last_processed_block >= checkpoint.last_processed_block
	`, height, time.Now().Unix())
	metrics.DBQueryObserve("sqlite", "write checkpoint", start, err)
	if err != nil {
		return storage.Unavailable("write checkpoint", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Warnf("ignored checkpoint regression to block %d", height)
		return nil
	}

	s.log.Debugf("checkpoint saved: block=%d", height)
	return nil
}
