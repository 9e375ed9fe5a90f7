package projector

import (
	"context"
	"database/sql"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/MarketIndexor/internal/db"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/migrations"
	"github.com/goran-ethernal/MarketIndexor/internal/storage/sqlite"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
	carol = "0x00000000000000000000000000000000000ca201"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestStore(t *testing.T) (*sqlite.ProjectionStore, *sql.DB) {
	t.Helper()

	dbConfig := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "projection.db")}
	dbConfig.ApplyDefaults()

	sqlDB, err := db.NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, migrations.RunSQLite(logger.NewNopLogger(), sqlDB))

	return sqlite.NewProjectionStore(sqlDB, nil, logger.NewNopLogger()), sqlDB
}

func newTestProjector(t *testing.T) (*Projector, *sqlite.ProjectionStore, *sql.DB) {
	t.Helper()

	store, sqlDB := newTestStore(t)
	p := New(store, logger.NewNopLogger(), WithClock(func() time.Time { return fixedNow }))

	return p, store, sqlDB
}

func meta(block uint64, index uint) events.Meta {
	return events.Meta{BlockNumber: block, LogIndex: index, TxHash: common.BigToHash(big.NewInt(int64(block)))}
}

// marketLifecycle is a proposal with three bets, a resolution and one claim.
func marketLifecycle() []events.Event {
	return []events.Event{
		&events.ProposalCreated{Meta: meta(10, 0), ProposalID: "7", Proposer: alice, Title: "Fund audits",
			Description: "body", VoteStart: big.NewInt(11), VoteEnd: big.NewInt(50)},
		&events.ProposalCostCharged{Meta: meta(10, 1), ProposalID: "7", Proposer: alice,
			CategoryID: big.NewInt(1), Cost: big.NewInt(25)},
		&events.BetPlaced{Meta: meta(12, 0), ProposalID: "7", Bettor: alice, Side: true, Amount: big.NewInt(560)},
		&events.BetPlaced{Meta: meta(12, 4), ProposalID: "7", Bettor: bob, Side: true, Amount: big.NewInt(140)},
		&events.BetPlaced{Meta: meta(13, 0), ProposalID: "7", Bettor: carol, Side: false, Amount: big.NewInt(300)},
		&events.AgentRegistered{Meta: meta(14, 0), Address: carol},
		&events.MarketResolved{Meta: meta(60, 0), ProposalID: "7", Outcome: true,
			TotalYes: big.NewInt(700), TotalNo: big.NewInt(300), PlatformFee: big.NewInt(50)},
		&events.Claimed{Meta: meta(61, 2), ProposalID: "7", Bettor: alice, Payout: big.NewInt(760)},
	}
}

func applyAll(t *testing.T, p *Projector, evs []events.Event) []*events.Broadcast {
	t.Helper()

	var out []*events.Broadcast
	for _, ev := range evs {
		b, err := p.Apply(context.Background(), ev)
		require.NoError(t, err)
		if b != nil {
			out = append(out, b)
		}
	}

	return out
}

func TestApply_Lifecycle(t *testing.T) {
	p, store, _ := newTestProjector(t)
	ctx := context.Background()

	broadcasts := applyAll(t, p, marketLifecycle())

	types := make([]events.BroadcastType, 0, len(broadcasts))
	for _, b := range broadcasts {
		types = append(types, b.Type)
	}
	require.Equal(t, []events.BroadcastType{
		events.BroadcastProposalCreated,
		events.BroadcastBetPlaced,
		events.BroadcastBetPlaced,
		events.BroadcastBetPlaced,
		events.BroadcastAgentRegistered,
		events.BroadcastMarketResolved,
		events.BroadcastBetClaimed,
	}, types)

	require.Equal(t, map[string]any{"proposalId": "7", "title": "Fund audits"}, broadcasts[0].Data)
	require.Equal(t, map[string]any{"proposalId": "7", "bettor": bob, "side": true, "amount": "140"}, broadcasts[2].Data)
	require.Equal(t, map[string]any{"proposalId": "7", "outcome": true}, broadcasts[5].Data)
	require.Equal(t, map[string]any{"proposalId": "7", "bettor": alice, "payout": "760"}, broadcasts[6].Data)

	proposal, err := store.GetProposal(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "25", proposal.Cost.String())
	require.Equal(t, "1", proposal.CategoryID.String())
	require.True(t, proposal.Resolved)
	require.True(t, *proposal.Outcome)
	require.Equal(t, "700", proposal.TotalYes.String())
	require.Equal(t, "300", proposal.TotalNo.String())
	require.Equal(t, "50", proposal.PlatformFee.String())
	require.Equal(t, fixedNow.Unix(), proposal.CreatedAt)
	require.Equal(t, uint64(10), proposal.BlockNumber)

	bet, err := store.GetBet(ctx, "7", alice)
	require.NoError(t, err)
	require.True(t, bet.Claimed)
	require.Equal(t, "760", bet.Payout.String())

	agent, err := store.GetAgent(ctx, carol)
	require.NoError(t, err)
	require.Equal(t, fixedNow.Unix(), agent.RegisteredAt)
}

func TestApply_IdempotentReplay(t *testing.T) {
	once, onceStore, _ := newTestProjector(t)
	twice, twiceStore, _ := newTestProjector(t)
	ctx := context.Background()

	applyAll(t, once, marketLifecycle())
	applyAll(t, twice, marketLifecycle())
	replayed := applyAll(t, twice, marketLifecycle())

	// inserts are suppressed on replay, updates are re-announced
	for _, b := range replayed {
		require.Contains(t, []events.BroadcastType{events.BroadcastMarketResolved, events.BroadcastBetClaimed}, b.Type)
	}

	onceCounts, err := onceStore.Counts(ctx)
	require.NoError(t, err)
	twiceCounts, err := twiceStore.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.Counts{Proposals: 1, ResolvedProposals: 1, Bets: 3, Agents: 1}, onceCounts)
	require.Equal(t, onceCounts, twiceCounts)

	p1, err := onceStore.GetProposal(ctx, "7")
	require.NoError(t, err)
	p2, err := twiceStore.GetProposal(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	b1, err := onceStore.ListBets(ctx, "7")
	require.NoError(t, err)
	b2, err := twiceStore.ListBets(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestApply_ResolutionUsesProjectedBets(t *testing.T) {
	p, store, _ := newTestProjector(t)
	ctx := context.Background()

	applyAll(t, p, []events.Event{
		&events.ProposalCreated{Meta: meta(1, 0), ProposalID: "1", Proposer: alice, Title: "t"},
		&events.BetPlaced{Meta: meta(2, 0), ProposalID: "1", Bettor: alice, Side: true, Amount: big.NewInt(400)},
		&events.BetPlaced{Meta: meta(2, 1), ProposalID: "1", Bettor: bob, Side: false, Amount: big.NewInt(100)},
		&events.BetPlaced{Meta: meta(2, 2), ProposalID: "1", Bettor: carol, Side: false, Amount: big.NewInt(25)},
		// second bet of the same bettor is not an extra stake
		&events.BetPlaced{Meta: meta(3, 0), ProposalID: "1", Bettor: alice, Side: true, Amount: big.NewInt(9999)},
		&events.MarketResolved{Meta: meta(4, 0), ProposalID: "1", Outcome: false,
			TotalYes: big.NewInt(1), TotalNo: big.NewInt(2), PlatformFee: big.NewInt(5)},
	})

	proposal, err := store.GetProposal(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "400", proposal.TotalYes.String())
	require.Equal(t, "125", proposal.TotalNo.String())
	require.False(t, *proposal.Outcome)

	yes, no, err := store.BetTotals(ctx, "1")
	require.NoError(t, err)
	require.Zero(t, yes.Cmp(proposal.TotalYes))
	require.Zero(t, no.Cmp(proposal.TotalNo))
}

func TestApply_DuplicateAgent(t *testing.T) {
	p, store, _ := newTestProjector(t)
	ev := &events.AgentRegistered{Meta: meta(5, 0), Address: bob}

	first, err := p.Apply(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := p.Apply(context.Background(), ev)
	require.NoError(t, err)
	require.Nil(t, second)

	counts, err := store.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), counts.Agents)
}

func TestApply_MissingTargets(t *testing.T) {
	p, store, _ := newTestProjector(t)

	broadcasts := applyAll(t, p, []events.Event{
		&events.ProposalCostCharged{Meta: meta(1, 0), ProposalID: "404", Cost: big.NewInt(1), CategoryID: big.NewInt(1)},
		&events.MarketResolved{Meta: meta(1, 1), ProposalID: "404", Outcome: true},
		&events.Claimed{Meta: meta(1, 2), ProposalID: "404", Bettor: alice, Payout: big.NewInt(1)},
	})
	require.Empty(t, broadcasts)

	_, err := store.GetProposal(context.Background(), "404")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApply_StorageUnavailable(t *testing.T) {
	p, _, sqlDB := newTestProjector(t)
	require.NoError(t, sqlDB.Close())

	_, err := p.Apply(context.Background(), &events.AgentRegistered{Meta: meta(1, 0), Address: alice})
	require.ErrorIs(t, err, storage.ErrStorageUnavailable)
	require.ErrorContains(t, err, "apply AgentRegistered at block 1 index 0")
}
