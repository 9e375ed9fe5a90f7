package decoder_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder/decodertest"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/stretchr/testify/require"
)

var (
	proposer = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bettor   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

func newDecoder(t *testing.T) *decoder.Decoder {
	t.Helper()

	d, err := decoder.New(decodertest.Contracts(), logger.NewNopLogger())
	require.NoError(t, err)

	return d
}

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func TestDecode_Variants(t *testing.T) {
	d := newDecoder(t)
	id, _ := new(big.Int).SetString("98765432109876543210987654321", 10)

	tests := []struct {
		name string
		raw  types.Log
		want events.Event
	}{
		{
			name: "proposal created",
			raw:  decodertest.ProposalCreated(id, proposer, big.NewInt(100), big.NewInt(200), "# Treasury\nMove funds"),
			want: &events.ProposalCreated{
				ProposalID:  id.String(),
				Proposer:    lower(proposer),
				Title:       "Treasury",
				Description: "Move funds",
				VoteStart:   big.NewInt(100),
				VoteEnd:     big.NewInt(200),
			},
		},
		{
			name: "proposal cost charged",
			raw:  decodertest.ProposalCostCharged(id, proposer, big.NewInt(2), big.NewInt(5000)),
			want: &events.ProposalCostCharged{
				ProposalID: id.String(),
				Proposer:   lower(proposer),
				CategoryID: big.NewInt(2),
				Cost:       big.NewInt(5000),
			},
		},
		{
			name: "bet placed",
			raw:  decodertest.BetPlaced(id, bettor, true, big.NewInt(140)),
			want: &events.BetPlaced{ProposalID: id.String(), Bettor: lower(bettor), Side: true, Amount: big.NewInt(140)},
		},
		{
			name: "market resolved",
			raw:  decodertest.MarketResolved(id, false, big.NewInt(700), big.NewInt(300), big.NewInt(50)),
			want: &events.MarketResolved{
				ProposalID:  id.String(),
				Outcome:     false,
				TotalYes:    big.NewInt(700),
				TotalNo:     big.NewInt(300),
				PlatformFee: big.NewInt(50),
			},
		},
		{
			name: "claimed",
			raw:  decodertest.Claimed(id, bettor, big.NewInt(190)),
			want: &events.Claimed{ProposalID: id.String(), Bettor: lower(bettor), Payout: big.NewInt(190)},
		},
		{
			name: "agent registered",
			raw:  decodertest.AgentRegistered(bettor),
			want: &events.AgentRegistered{Address: lower(bettor)},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decodertest.At(tt.raw, 42, uint(i))

			got, err := d.Decode(raw)
			require.NoError(t, err)
			require.Equal(t, tt.want.Kind(), got.Kind())

			meta := got.Metadata()
			require.Equal(t, raw.Address, meta.Contract)
			require.Equal(t, uint64(42), meta.BlockNumber)
			require.Equal(t, uint(i), meta.LogIndex)
			require.Equal(t, raw.TxHash, meta.TxHash)

			// compare payloads without position metadata
			switch w := tt.want.(type) {
			case *events.ProposalCreated:
				w.Meta = meta
			case *events.ProposalCostCharged:
				w.Meta = meta
			case *events.BetPlaced:
				w.Meta = meta
			case *events.MarketResolved:
				w.Meta = meta
			case *events.Claimed:
				w.Meta = meta
			case *events.AgentRegistered:
				w.Meta = meta
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Roles(t *testing.T) {
	d := newDecoder(t)

	ev, err := d.Decode(decodertest.BetPlaced(big.NewInt(1), bettor, false, big.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, events.RolePredictionMarket, ev.Metadata().Role)

	ev, err = d.Decode(decodertest.AgentRegistered(bettor))
	require.NoError(t, err)
	require.Equal(t, events.RoleAgentRegistry, ev.Metadata().Role)
}

func TestDecode_Unrecognized(t *testing.T) {
	d := newDecoder(t)
	bet := decodertest.BetPlaced(big.NewInt(1), bettor, true, big.NewInt(10))

	t.Run("unknown contract", func(t *testing.T) {
		raw := bet
		raw.Address = common.HexToAddress("0x1234")
		_, err := d.Decode(raw)
		require.ErrorIs(t, err, decoder.ErrUnrecognizedEvent)
	})

	t.Run("signature of another contract", func(t *testing.T) {
		raw := bet
		raw.Address = decodertest.Governance
		_, err := d.Decode(raw)
		require.ErrorIs(t, err, decoder.ErrUnrecognizedEvent)
	})

	t.Run("unknown signature", func(t *testing.T) {
		raw := bet
		raw.Topics = append([]common.Hash{common.HexToHash("0xdead")}, bet.Topics[1:]...)
		_, err := d.Decode(raw)
		require.ErrorIs(t, err, decoder.ErrUnrecognizedEvent)
	})

	t.Run("anonymous log", func(t *testing.T) {
		raw := bet
		raw.Topics = nil
		_, err := d.Decode(raw)
		require.ErrorIs(t, err, decoder.ErrUnrecognizedEvent)
	})
}

func TestDecode_Malformed(t *testing.T) {
	d := newDecoder(t)
	bet := decodertest.At(decodertest.BetPlaced(big.NewInt(1), bettor, true, big.NewInt(10)), 7, 3)

	t.Run("truncated data", func(t *testing.T) {
		raw := bet
		raw.Data = raw.Data[:31]

		_, err := d.Decode(raw)
		require.Error(t, err)
		require.False(t, errors.Is(err, decoder.ErrUnrecognizedEvent))
		require.True(t, decoder.IsMalformed(err))

		var malformed *decoder.MalformedLogError
		require.ErrorAs(t, err, &malformed)
		require.Equal(t, events.KindBetPlaced, malformed.Event)
		require.Equal(t, events.RolePredictionMarket, malformed.Role)
		require.Equal(t, uint64(7), malformed.BlockNumber)
		require.Equal(t, uint(3), malformed.LogIndex)
	})

	t.Run("missing indexed topic", func(t *testing.T) {
		raw := bet
		raw.Topics = raw.Topics[:2]

		_, err := d.Decode(raw)
		require.True(t, decoder.IsMalformed(err))
		require.ErrorContains(t, err, "expected 3 topics, got 2")
	})

	t.Run("empty payload", func(t *testing.T) {
		raw := decodertest.ProposalCreated(big.NewInt(1), proposer, big.NewInt(1), big.NewInt(2), "x")
		raw.Data = nil

		_, err := d.Decode(raw)
		require.True(t, decoder.IsMalformed(err))
	})
}

func TestTopics(t *testing.T) {
	d := newDecoder(t)

	require.ElementsMatch(t, []common.Hash{
		decodertest.Topic(events.RolePredictionMarket, events.KindBetPlaced),
		decodertest.Topic(events.RolePredictionMarket, events.KindMarketResolved),
		decodertest.Topic(events.RolePredictionMarket, events.KindClaimed),
	}, d.Topics(events.RolePredictionMarket))
	require.Len(t, d.Topics(events.RoleGovernance), 2)
	require.Len(t, d.Topics(events.RoleAgentRegistry), 1)

	addr, ok := d.Contract(events.RoleAgentRegistry)
	require.True(t, ok)
	require.Equal(t, decodertest.AgentRegistry, addr)
}

func TestNew_RejectsSharedAddress(t *testing.T) {
	_, err := decoder.New(map[events.Role]common.Address{
		events.RoleGovernance:       decodertest.Governance,
		events.RolePredictionMarket: decodertest.Governance,
	}, logger.NewNopLogger())
	require.ErrorContains(t, err, "configured as both")
}

func TestContractsFromConfig(t *testing.T) {
	contracts := decoder.ContractsFromConfig(config.ContractsConfig{
		Governance:       decodertest.Governance.Hex(),
		PredictionMarket: strings.ToLower(decodertest.PredictionMarket.Hex()),
		AgentRegistry:    decodertest.AgentRegistry.Hex(),
	})
	require.Equal(t, decodertest.Contracts(), contracts)
}

func TestSignatureHashes(t *testing.T) {
	signatures := map[events.Kind]string{
		events.KindProposalCreated: "ProposalCreated(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string)",
		events.KindBetPlaced:       "BetPlaced(uint256,address,bool,uint256)",
		events.KindAgentRegistered: "AgentRegistered(address)",
	}
	roles := map[events.Kind]events.Role{
		events.KindProposalCreated: events.RoleGovernance,
		events.KindBetPlaced:       events.RolePredictionMarket,
		events.KindAgentRegistered: events.RoleAgentRegistry,
	}

	for kind, sig := range signatures {
		require.Equal(t, crypto.Keccak256Hash([]byte(sig)), decodertest.Topic(roles[kind], kind), sig)
	}
}
