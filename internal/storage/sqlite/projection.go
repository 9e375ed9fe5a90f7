package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/db"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/russross/meddler"
)

// Compile-time check to ensure ProjectionStore implements storage.ProjectionStore.
var _ storage.ProjectionStore = (*ProjectionStore)(nil)

// ProjectionStore persists proposals, bets and agents in SQLite.
// Big integers are stored as decimal TEXT through the bigint meddler.
type ProjectionStore struct {
	db          *sql.DB
	maintenance db.Maintenance
	log         *logger.Logger
}

// NewProjectionStore creates a projection store on an already migrated database.
func NewProjectionStore(sqlDB *sql.DB, maintenance db.Maintenance, log *logger.Logger) *ProjectionStore {
	if maintenance == nil {
		maintenance = db.NoOpMaintenance{}
	}

	return &ProjectionStore{
		db:          sqlDB,
		maintenance: maintenance,
		log:         log,
	}
}

// insertIgnore inserts src into table unless a row with the same key exists.
func (s *ProjectionStore) insertIgnore(ctx context.Context, table, conflict string, src any) (inserted bool, err error) {
	defer func(start time.Time) {
		metrics.DBQueryObserve("sqlite", "insert "+table, start, err)
	}(time.Now())

	columns, err := meddler.SQLite.ColumnsQuoted(src, true)
	if err != nil {
		return false, err
	}
	placeholders, err := meddler.SQLite.PlaceholdersString(src, true)
	if err != nil {
		return false, err
	}
	values, err := meddler.SQLite.Values(src, true)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		table, columns, placeholders, conflict,
	)

	res, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (s *ProjectionStore) update(ctx context.Context, op, query string, args ...any) (bool, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.DBQueryObserve("sqlite", op, start, err)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *ProjectionStore) InsertProposal(ctx context.Context, p *storage.Proposal) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	inserted, err := s.insertIgnore(ctx, "proposals", "proposal_id", p)
	if err != nil {
		return false, storage.Unavailable("insert proposal", err)
	}

	return inserted, nil
}

func (s *ProjectionStore) SetProposalCost(
	ctx context.Context,
	proposalID string,
	categoryID, cost *big.Int,
) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	found, err := s.update(ctx, "set proposal cost",
		`UPDATE proposals SET category_id = ?, cost = ? WHERE proposal_id = ?`,
		bigText(categoryID), bigText(cost), proposalID,
	)
	if err != nil {
		return false, storage.Unavailable("set proposal cost", err)
	}

	return found, nil
}

func (s *ProjectionStore) InsertBet(ctx context.Context, b *storage.Bet) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	inserted, err := s.insertIgnore(ctx, "bets", "proposal_id, bettor", b)
	if err != nil {
		return false, storage.Unavailable("insert bet", err)
	}

	return inserted, nil
}

func (s *ProjectionStore) ResolveProposal(ctx context.Context, r storage.Resolution) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	found, err := s.update(ctx, "resolve proposal", `
		UPDATE proposals
		SET resolved = 1, outcome = ?, total_yes = ?, total_no = ?, platform_fee = ?
		WHERE proposal_id = ?`,
		r.Outcome, bigText(r.TotalYes), bigText(r.TotalNo), bigText(r.PlatformFee), r.ProposalID,
	)
	if err != nil {
		return false, storage.Unavailable("resolve proposal", err)
	}

	return found, nil
}

func (s *ProjectionStore) ClaimBet(ctx context.Context, proposalID, bettor string, payout *big.Int) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	found, err := s.update(ctx, "claim bet",
		`UPDATE bets SET claimed = 1, payout = ? WHERE proposal_id = ? AND bettor = ?`,
		bigText(payout), proposalID, bettor,
	)
	if err != nil {
		return false, storage.Unavailable("claim bet", err)
	}

	return found, nil
}

func (s *ProjectionStore) InsertAgent(ctx context.Context, a *storage.Agent) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	inserted, err := s.insertIgnore(ctx, "agents", "address", a)
	if err != nil {
		return false, storage.Unavailable("insert agent", err)
	}

	return inserted, nil
}

// BetTotals sums amounts in Go: SQLite SUM over TEXT would go through floating point.
func (s *ProjectionStore) BetTotals(ctx context.Context, proposalID string) (*big.Int, *big.Int, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT side, amount FROM bets WHERE proposal_id = ?`, proposalID)
	if err != nil {
		return nil, nil, storage.Unavailable("sum bets", err)
	}
	defer rows.Close()

	totalYes, totalNo := new(big.Int), new(big.Int)
	for rows.Next() {
		var (
			side   bool
			amount string
		)
		if err := rows.Scan(&side, &amount); err != nil {
			return nil, nil, storage.Unavailable("sum bets", err)
		}

		n, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, nil, fmt.Errorf("bet %s has invalid amount %q", proposalID, amount)
		}

		if side {
			totalYes.Add(totalYes, n)
		} else {
			totalNo.Add(totalNo, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storage.Unavailable("sum bets", err)
	}

	return totalYes, totalNo, nil
}

func (s *ProjectionStore) GetProposal(ctx context.Context, proposalID string) (*storage.Proposal, error) {
	var p storage.Proposal
	if err := s.queryRow(ctx, "get proposal", &p, `SELECT * FROM proposals WHERE proposal_id = ?`, proposalID); err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *ProjectionStore) GetBet(ctx context.Context, proposalID, bettor string) (*storage.Bet, error) {
	var b storage.Bet
	err := s.queryRow(ctx, "get bet", &b,
		`SELECT * FROM bets WHERE proposal_id = ? AND bettor = ?`, proposalID, bettor)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *ProjectionStore) GetAgent(ctx context.Context, address string) (*storage.Agent, error) {
	var a storage.Agent
	if err := s.queryRow(ctx, "get agent", &a, `SELECT * FROM agents WHERE address = ?`, address); err != nil {
		return nil, err
	}

	return &a, nil
}

func (s *ProjectionStore) ListBets(ctx context.Context, proposalID string) ([]*storage.Bet, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("list bets", err)
	}

	var bets []*storage.Bet
	err := meddler.QueryAll(s.db, &bets,
		`SELECT * FROM bets WHERE proposal_id = ? ORDER BY block_number, bettor`, proposalID)
	if err != nil {
		return nil, storage.Unavailable("list bets", err)
	}

	return bets, nil
}

func (s *ProjectionStore) Counts(ctx context.Context) (storage.Counts, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var c storage.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM proposals),
			(SELECT COUNT(*) FROM proposals WHERE resolved = 1),
			(SELECT COUNT(*) FROM bets),
			(SELECT COUNT(*) FROM agents)
	`).Scan(&c.Proposals, &c.ResolvedProposals, &c.Bets, &c.Agents)
	if err != nil {
		return storage.Counts{}, storage.Unavailable("count rows", err)
	}

	return c, nil
}

func (s *ProjectionStore) queryRow(ctx context.Context, op string, dst any, query string, args ...any) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if err := ctx.Err(); err != nil {
		return storage.Unavailable(op, err)
	}

	start := time.Now()
	err := meddler.QueryRow(s.db, dst, query, args...)
	metrics.DBQueryObserve("sqlite", op, start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Unavailable(op, err)
	}

	return nil
}

// bigText converts n for a TEXT column; nil becomes NULL.
func bigText(n *big.Int) any {
	if n == nil {
		return nil
	}
	return n.String()
}
