package storage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Proposal is a row of the proposals table.
type Proposal struct {
	ProposalID  string      `meddler:"proposal_id"`
	Proposer    string      `meddler:"proposer"`
	Title       string      `meddler:"title"`
	Description string      `meddler:"description"`
	CategoryID  *big.Int    `meddler:"category_id,bigint"`
	Cost        *big.Int    `meddler:"cost,bigint"`
	VoteStart   *big.Int    `meddler:"vote_start,bigint"`
	VoteEnd     *big.Int    `meddler:"vote_end,bigint"`
	Resolved    bool        `meddler:"resolved"`
	Outcome     *bool       `meddler:"outcome"`
	TotalYes    *big.Int    `meddler:"total_yes,bigint"`
	TotalNo     *big.Int    `meddler:"total_no,bigint"`
	PlatformFee *big.Int    `meddler:"platform_fee,bigint"`
	BlockNumber uint64      `meddler:"block_number"`
	TxHash      common.Hash `meddler:"tx_hash,hash"`
	CreatedAt   int64       `meddler:"created_at"`
}

// Bet is a row of the bets table, keyed by (ProposalID, Bettor).
type Bet struct {
	ProposalID  string      `meddler:"proposal_id"`
	Bettor      string      `meddler:"bettor"`
	Side        bool        `meddler:"side"`
	Amount      *big.Int    `meddler:"amount,bigint"`
	Claimed     bool        `meddler:"claimed"`
	Payout      *big.Int    `meddler:"payout,bigint"`
	BlockNumber uint64      `meddler:"block_number"`
	TxHash      common.Hash `meddler:"tx_hash,hash"`
	CreatedAt   int64       `meddler:"created_at"`
}

// Agent is a row of the agents table.
type Agent struct {
	Address      string      `meddler:"address"`
	BlockNumber  uint64      `meddler:"block_number"`
	TxHash       common.Hash `meddler:"tx_hash,hash"`
	RegisteredAt int64       `meddler:"registered_at"`
}

// Resolution is the final state written to a proposal when its market resolves.
type Resolution struct {
	ProposalID  string
	Outcome     bool
	TotalYes    *big.Int
	TotalNo     *big.Int
	PlatformFee *big.Int
}

// Counts summarizes the projection size.
type Counts struct {
	Proposals         uint64
	ResolvedProposals uint64
	Bets              uint64
	Agents            uint64
}

// ProjectionWriter holds the idempotent write path. Insert methods report whether a row
// was created; update methods report whether a row matched.
type ProjectionWriter interface {
	InsertProposal(ctx context.Context, p *Proposal) (bool, error)
	SetProposalCost(ctx context.Context, proposalID string, categoryID, cost *big.Int) (bool, error)
	InsertBet(ctx context.Context, b *Bet) (bool, error)
	ResolveProposal(ctx context.Context, r Resolution) (bool, error)
	ClaimBet(ctx context.Context, proposalID, bettor string, payout *big.Int) (bool, error)
	InsertAgent(ctx context.Context, a *Agent) (bool, error)
}

// ProjectionReader holds the read path used for aggregates and read-side helpers.
type ProjectionReader interface {
	// BetTotals sums the stored bet amounts of a proposal by side.
	BetTotals(ctx context.Context, proposalID string) (totalYes, totalNo *big.Int, err error)
	GetProposal(ctx context.Context, proposalID string) (*Proposal, error)
	GetBet(ctx context.Context, proposalID, bettor string) (*Bet, error)
	GetAgent(ctx context.Context, address string) (*Agent, error)
	ListBets(ctx context.Context, proposalID string) ([]*Bet, error)
	Counts(ctx context.Context) (Counts, error)
}

// ProjectionStore is the full projection persistence contract.
type ProjectionStore interface {
	ProjectionWriter
	ProjectionReader
}
