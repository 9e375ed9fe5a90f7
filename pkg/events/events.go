// Package events defines the typed domain events decoded from contract logs
// and the broadcast messages pushed to subscribers.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names a domain event variant.
type Kind string

const (
	KindProposalCreated     Kind = "ProposalCreated"
	KindProposalCostCharged Kind = "ProposalCostCharged"
	KindBetPlaced           Kind = "BetPlaced"
	KindMarketResolved      Kind = "MarketResolved"
	KindClaimed             Kind = "Claimed"
	KindAgentRegistered     Kind = "AgentRegistered"
)

// Role identifies which of the indexed contracts emitted a log.
type Role string

const (
	RoleGovernance       Role = "governance"
	RolePredictionMarket Role = "prediction_market"
	RoleAgentRegistry    Role = "agent_registry"
)

// Roles lists the contract roles in a fixed order.
var Roles = []Role{RoleGovernance, RolePredictionMarket, RoleAgentRegistry}

// Meta is the position of the originating log.
type Meta struct {
	Role        Role
	Contract    common.Address
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
}

// Metadata returns m. Embedding Meta satisfies the metadata half of Event.
func (m Meta) Metadata() Meta { return m }

// Event is one decoded contract log.
type Event interface {
	Kind() Kind
	Metadata() Meta
}

// ProposalCreated is emitted by the governance contract when a proposal is submitted.
type ProposalCreated struct {
	Meta
	ProposalID  string
	Proposer    string
	Title       string
	Description string
	VoteStart   *big.Int
	VoteEnd     *big.Int
}

// ProposalCostCharged records the fee charged for a proposal and its category.
type ProposalCostCharged struct {
	Meta
	ProposalID string
	Proposer   string
	CategoryID *big.Int
	Cost       *big.Int
}

// BetPlaced is a stake on one side of a proposal market.
type BetPlaced struct {
	Meta
	ProposalID string
	Bettor     string
	Side       bool
	Amount     *big.Int
}

// MarketResolved closes a market. The pool totals carried by the log are informational;
// the projection recomputes them from stored bets.
type MarketResolved struct {
	Meta
	ProposalID  string
	Outcome     bool
	TotalYes    *big.Int
	TotalNo     *big.Int
	PlatformFee *big.Int
}

// Claimed records a payout withdrawn by a bettor.
type Claimed struct {
	Meta
	ProposalID string
	Bettor     string
	Payout     *big.Int
}

// AgentRegistered is emitted by the agent registry.
type AgentRegistered struct {
	Meta
	Address string
}

func (*ProposalCreated) Kind() Kind     { return KindProposalCreated }
func (*ProposalCostCharged) Kind() Kind { return KindProposalCostCharged }
func (*BetPlaced) Kind() Kind           { return KindBetPlaced }
func (*MarketResolved) Kind() Kind      { return KindMarketResolved }
func (*Claimed) Kind() Kind             { return KindClaimed }
func (*AgentRegistered) Kind() Kind     { return KindAgentRegistered }
