package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.ProjectionStore = (*ProjectionStore)(nil)

const (
	proposalColumns = `proposal_id, proposer, title, description,
		category_id::text, cost::text, vote_start::text, vote_end::text,
		resolved, outcome, total_yes::text, total_no::text, platform_fee::text,
		block_number, tx_hash, created_at`

	betColumns = `proposal_id, bettor, side, amount::text, claimed, payout::text,
		block_number, tx_hash, created_at`
)

// ProjectionStore persists proposals, bets and agents in PostgreSQL.
// Token amounts live in NUMERIC(78,0) columns and are read back through ::text.
type ProjectionStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewProjectionStore(pool *pgxpool.Pool, log *logger.Logger) *ProjectionStore {
	return &ProjectionStore{pool: pool, log: log}
}

func (s *ProjectionStore) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, query, args...)
	metrics.DBQueryObserve("postgres", op, start, err)
	if err != nil {
		return false, storage.Unavailable(op, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *ProjectionStore) InsertProposal(ctx context.Context, p *storage.Proposal) (bool, error) {
	return s.exec(ctx, "insert proposal", `
		INSERT INTO proposals (
			proposal_id, proposer, title, description, category_id, cost, vote_start, vote_end,
			resolved, outcome, total_yes, total_no, platform_fee, block_number, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (proposal_id) DO NOTHING`,
		p.ProposalID, p.Proposer, p.Title, p.Description,
		numeric(p.CategoryID), numeric(p.Cost), numeric(p.VoteStart), numeric(p.VoteEnd),
		p.Resolved, p.Outcome, numeric(p.TotalYes), numeric(p.TotalNo), numeric(p.PlatformFee),
		int64(p.BlockNumber), p.TxHash.Hex(), p.CreatedAt,
	)
}

func (s *ProjectionStore) SetProposalCost(
	ctx context.Context,
	proposalID string,
	categoryID, cost *big.Int,
) (bool, error) {
	return s.exec(ctx, "set proposal cost",
		`UPDATE proposals SET category_id = $1, cost = $2 WHERE proposal_id = $3`,
		numeric(categoryID), numeric(cost), proposalID,
	)
}

func (s *ProjectionStore) InsertBet(ctx context.Context, b *storage.Bet) (bool, error) {
	return s.exec(ctx, "insert bet", `
		INSERT INTO bets (
			proposal_id, bettor, side, amount, claimed, payout, block_number, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (proposal_id, bettor) DO NOTHING`,
		b.ProposalID, b.Bettor, b.Side, numeric(b.Amount), b.Claimed, numeric(b.Payout),
		int64(b.BlockNumber), b.TxHash.Hex(), b.CreatedAt,
	)
}

func (s *ProjectionStore) ResolveProposal(ctx context.Context, r storage.Resolution) (bool, error) {
	return s.exec(ctx, "resolve proposal", `
		UPDATE proposals
		SET resolved = TRUE, outcome = $1, total_yes = $2, total_no = $3, platform_fee = $4
		WHERE proposal_id = $5`,
		r.Outcome, numeric(r.TotalYes), numeric(r.TotalNo), numeric(r.PlatformFee), r.ProposalID,
	)
}

func (s *ProjectionStore) ClaimBet(ctx context.Context, proposalID, bettor string, payout *big.Int) (bool, error) {
	return s.exec(ctx, "claim bet",
		`UPDATE bets SET claimed = TRUE, payout = $1 WHERE proposal_id = $2 AND bettor = $3`,
		numeric(payout), proposalID, bettor,
	)
}

func (s *ProjectionStore) InsertAgent(ctx context.Context, a *storage.Agent) (bool, error) {
	return s.exec(ctx, "insert agent", `
		INSERT INTO agents (address, block_number, tx_hash, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING`,
		a.Address, int64(a.BlockNumber), a.TxHash.Hex(), a.RegisteredAt,
	)
}

func (s *ProjectionStore) BetTotals(ctx context.Context, proposalID string) (*big.Int, *big.Int, error) {
	var yes, no string
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE side), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE NOT side), 0)::text
		FROM bets WHERE proposal_id = $1`, proposalID,
	).Scan(&yes, &no)
	if err != nil {
		return nil, nil, storage.Unavailable("sum bets", err)
	}

	totalYes, err := parseBig(&yes)
	if err != nil {
		return nil, nil, err
	}
	totalNo, err := parseBig(&no)
	if err != nil {
		return nil, nil, err
	}

	return totalYes, totalNo, nil
}

func (s *ProjectionStore) GetProposal(ctx context.Context, proposalID string) (*storage.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE proposal_id = $1`, proposalID)

	p, err := scanProposal(row)
	if err != nil {
		return nil, readError("get proposal", err)
	}

	return p, nil
}

func (s *ProjectionStore) GetBet(ctx context.Context, proposalID, bettor string) (*storage.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betColumns+` FROM bets WHERE proposal_id = $1 AND bettor = $2`, proposalID, bettor)

	b, err := scanBet(row)
	if err != nil {
		return nil, readError("get bet", err)
	}

	return b, nil
}

func (s *ProjectionStore) GetAgent(ctx context.Context, address string) (*storage.Agent, error) {
	var (
		a      storage.Agent
		block  int64
		txHash string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT address, block_number, tx_hash, registered_at FROM agents WHERE address = $1`, address,
	).Scan(&a.Address, &block, &txHash, &a.RegisteredAt)
	if err != nil {
		return nil, readError("get agent", err)
	}

	a.BlockNumber = uint64(block)
	a.TxHash = common.HexToHash(txHash)

	return &a, nil
}

func (s *ProjectionStore) ListBets(ctx context.Context, proposalID string) ([]*storage.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE proposal_id = $1 ORDER BY block_number, bettor`, proposalID)
	if err != nil {
		return nil, storage.Unavailable("list bets", err)
	}
	defer rows.Close()

	var bets []*storage.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, readError("list bets", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("list bets", err)
	}

	return bets, nil
}

func (s *ProjectionStore) Counts(ctx context.Context) (storage.Counts, error) {
	var proposals, resolved, bets, agents int64
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM proposals),
			(SELECT COUNT(*) FROM proposals WHERE resolved),
			(SELECT COUNT(*) FROM bets),
			(SELECT COUNT(*) FROM agents)
	`).Scan(&proposals, &resolved, &bets, &agents)
	if err != nil {
		return storage.Counts{}, storage.Unavailable("count rows", err)
	}

	return storage.Counts{
		Proposals:         uint64(proposals),
		ResolvedProposals: uint64(resolved),
		Bets:              uint64(bets),
		Agents:            uint64(agents),
	}, nil
}

// readError maps pgx.ErrNoRows to storage.ErrNotFound and everything else to unavailable.
func readError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var parseErr *numericError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return storage.Unavailable(op, err)
}

type numericError struct {
	column string
	err    error
}

func (e *numericError) Error() string {
	return fmt.Sprintf("column %s: %v", e.column, e.err)
}

func (e *numericError) Unwrap() error {
	return e.err
}

// parseColumns parses each ::text column into its *big.Int destination.
func parseColumns(cols map[string]*string, dst map[string]**big.Int) error {
	for name, raw := range cols {
		n, err := parseBig(raw)
		if err != nil {
			return &numericError{column: name, err: err}
		}
		*dst[name] = n
	}

	return nil
}

func scanProposal(row pgx.Row) (*storage.Proposal, error) {
	var (
		p                                    storage.Proposal
		categoryID, cost, voteStart, voteEnd *string
		totalYes, totalNo, platformFee       *string
		block                                int64
		txHash                               string
	)

	err := row.Scan(
		&p.ProposalID, &p.Proposer, &p.Title, &p.Description,
		&categoryID, &cost, &voteStart, &voteEnd,
		&p.Resolved, &p.Outcome, &totalYes, &totalNo, &platformFee,
		&block, &txHash, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = parseColumns(
		map[string]*string{
			"category_id": categoryID, "cost": cost, "vote_start": voteStart, "vote_end": voteEnd,
			"total_yes": totalYes, "total_no": totalNo, "platform_fee": platformFee,
		},
		map[string]**big.Int{
			"category_id": &p.CategoryID, "cost": &p.Cost, "vote_start": &p.VoteStart, "vote_end": &p.VoteEnd,
			"total_yes": &p.TotalYes, "total_no": &p.TotalNo, "platform_fee": &p.PlatformFee,
		},
	)
	if err != nil {
		return nil, err
	}

	p.BlockNumber = uint64(block)
	p.TxHash = common.HexToHash(txHash)

	return &p, nil
}

func scanBet(row pgx.Row) (*storage.Bet, error) {
	var (
		b              storage.Bet
		amount, payout *string
		block          int64
		txHash         string
	)

	err := row.Scan(
		&b.ProposalID, &b.Bettor, &b.Side, &amount, &b.Claimed, &payout,
		&block, &txHash, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = parseColumns(
		map[string]*string{"amount": amount, "payout": payout},
		map[string]**big.Int{"amount": &b.Amount, "payout": &b.Payout},
	)
	if err != nil {
		return nil, err
	}

	b.BlockNumber = uint64(block)
	b.TxHash = common.HexToHash(txHash)

	return &b, nil
}
