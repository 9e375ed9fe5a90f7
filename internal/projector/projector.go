// Package projector applies decoded domain events to the relational projection.
package projector

import (
	"context"
	"fmt"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
)

// Projector writes events to a projection store. Every write is insert-if-absent or
// an update keyed by primary key, so replaying a block range leaves the same state.
type Projector struct {
	store storage.ProjectionStore
	now   func() time.Time
	log   *logger.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithClock overrides the clock used for created_at and registered_at columns.
func WithClock(now func() time.Time) Option {
	return func(p *Projector) {
		p.now = now
	}
}

// New creates a projector on top of store.
func New(store storage.ProjectionStore, log *logger.Logger, opts ...Option) *Projector {
	p := &Projector{
		store: store,
		now:   time.Now,
		log:   log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Apply projects ev and returns the notification to broadcast, if any.
// Storage failures are returned wrapped and leave ErrStorageUnavailable in the chain.
func (p *Projector) Apply(ctx context.Context, ev events.Event) (*events.Broadcast, error) {
	var (
		broadcast *events.Broadcast
		err       error
	)

	switch e := ev.(type) {
	case *events.ProposalCreated:
		broadcast, err = p.proposalCreated(ctx, e)
	case *events.ProposalCostCharged:
		err = p.proposalCostCharged(ctx, e)
	case *events.BetPlaced:
		broadcast, err = p.betPlaced(ctx, e)
	case *events.MarketResolved:
		broadcast, err = p.marketResolved(ctx, e)
	case *events.Claimed:
		broadcast, err = p.claimed(ctx, e)
	case *events.AgentRegistered:
		broadcast, err = p.agentRegistered(ctx, e)
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}

	if err != nil {
		projectionErrorInc(string(ev.Kind()))
		return nil, fmt.Errorf("apply %s at block %d index %d: %w",
			ev.Kind(), ev.Metadata().BlockNumber, ev.Metadata().LogIndex, err)
	}

	appliedInc(string(ev.Kind()))
	return broadcast, nil
}

func (p *Projector) proposalCreated(ctx context.Context, e *events.ProposalCreated) (*events.Broadcast, error) {
	inserted, err := p.store.InsertProposal(ctx, &storage.Proposal{
		ProposalID:  e.ProposalID,
		Proposer:    e.Proposer,
		Title:       e.Title,
		Description: e.Description,
		VoteStart:   e.VoteStart,
		VoteEnd:     e.VoteEnd,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		CreatedAt:   p.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		duplicateInc(string(e.Kind()))
		p.log.Debugf("proposal %s already projected", e.ProposalID)
		return nil, nil
	}

	p.log.Infof("proposal %s created: %q", e.ProposalID, e.Title)

	return &events.Broadcast{
		Type: events.BroadcastProposalCreated,
		Data: map[string]any{
			"proposalId": e.ProposalID,
			"title":      e.Title,
		},
	}, nil
}

func (p *Projector) proposalCostCharged(ctx context.Context, e *events.ProposalCostCharged) error {
	found, err := p.store.SetProposalCost(ctx, e.ProposalID, e.CategoryID, e.Cost)
	if err != nil {
		return err
	}

	if !found {
		missingTargetInc(string(e.Kind()))
		p.log.Warnf("cost charged for unknown proposal %s at block %d", e.ProposalID, e.BlockNumber)
	}

	return nil
}

func (p *Projector) betPlaced(ctx context.Context, e *events.BetPlaced) (*events.Broadcast, error) {
	inserted, err := p.store.InsertBet(ctx, &storage.Bet{
		ProposalID:  e.ProposalID,
		Bettor:      e.Bettor,
		Side:        e.Side,
		Amount:      e.Amount,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		CreatedAt:   p.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		duplicateInc(string(e.Kind()))
		p.log.Debugf("bet of %s on proposal %s already projected", e.Bettor, e.ProposalID)
		return nil, nil
	}

	return &events.Broadcast{
		Type: events.BroadcastBetPlaced,
		Data: map[string]any{
			"proposalId": e.ProposalID,
			"bettor":     e.Bettor,
			"side":       e.Side,
			"amount":     bigString(e.Amount),
		},
	}, nil
}

// marketResolved stores totals summed from the projected bets. The totals carried by
// the log are only compared against them.
func (p *Projector) marketResolved(ctx context.Context, e *events.MarketResolved) (*events.Broadcast, error) {
	totalYes, totalNo, err := p.store.BetTotals(ctx, e.ProposalID)
	if err != nil {
		return nil, err
	}

	if !sameAmount(totalYes, e.TotalYes) || !sameAmount(totalNo, e.TotalNo) {
		totalsMismatchInc()
		p.log.Warnf("proposal %s pool totals differ from chain: projected yes=%s no=%s, event yes=%s no=%s",
			e.ProposalID, totalYes, totalNo, bigString(e.TotalYes), bigString(e.TotalNo))
	}

	found, err := p.store.ResolveProposal(ctx, storage.Resolution{
		ProposalID:  e.ProposalID,
		Outcome:     e.Outcome,
		TotalYes:    totalYes,
		TotalNo:     totalNo,
		PlatformFee: e.PlatformFee,
	})
	if err != nil {
		return nil, err
	}

	if !found {
		missingTargetInc(string(e.Kind()))
		p.log.Warnf("market resolved for unknown proposal %s at block %d", e.ProposalID, e.BlockNumber)
		return nil, nil
	}

	p.log.Infof("proposal %s resolved: outcome=%t yes=%s no=%s", e.ProposalID, e.Outcome, totalYes, totalNo)

	return &events.Broadcast{
		Type: events.BroadcastMarketResolved,
		Data: map[string]any{
			"proposalId": e.ProposalID,
			"outcome":    e.Outcome,
		},
	}, nil
}

func (p *Projector) claimed(ctx context.Context, e *events.Claimed) (*events.Broadcast, error) {
	found, err := p.store.ClaimBet(ctx, e.ProposalID, e.Bettor, e.Payout)
	if err != nil {
		return nil, err
	}

	if !found {
		missingTargetInc(string(e.Kind()))
		p.log.Warnf("claim by %s for unknown bet on proposal %s at block %d", e.Bettor, e.ProposalID, e.BlockNumber)
		return nil, nil
	}

	return &events.Broadcast{
		Type: events.BroadcastBetClaimed,
		Data: map[string]any{
			"proposalId": e.ProposalID,
			"bettor":     e.Bettor,
			"payout":     bigString(e.Payout),
		},
	}, nil
}

func (p *Projector) agentRegistered(ctx context.Context, e *events.AgentRegistered) (*events.Broadcast, error) {
	inserted, err := p.store.InsertAgent(ctx, &storage.Agent{
		Address:      e.Address,
		BlockNumber:  e.BlockNumber,
		TxHash:       e.TxHash,
		RegisteredAt: p.now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		duplicateInc(string(e.Kind()))
		return nil, nil
	}

	p.log.Infof("agent %s registered", e.Address)

	return &events.Broadcast{
		Type: events.BroadcastAgentRegistered,
		Data: map[string]any{
			"address": e.Address,
		},
	}, nil
}
