// Package decodertest builds ABI encoded contract logs for tests.
package decodertest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
)

var (
	Governance       = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	PredictionMarket = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	AgentRegistry    = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
)

// Contracts returns the test contract addresses by role.
func Contracts() map[events.Role]common.Address {
	return map[events.Role]common.Address{
		events.RoleGovernance:       Governance,
		events.RolePredictionMarket: PredictionMarket,
		events.RoleAgentRegistry:    AgentRegistry,
	}
}

// Topic returns the signature hash of the named event of role.
func Topic(role events.Role, kind events.Kind) common.Hash {
	return event(role, kind).ID
}

// At sets the position of l in the chain.
func At(l types.Log, block uint64, index uint) types.Log {
	l.BlockNumber = block
	l.Index = index
	l.TxHash = common.BigToHash(new(big.Int).SetUint64(block<<16 | uint64(index)))
	return l
}

func ProposalCreated(id *big.Int, proposer common.Address, voteStart, voteEnd *big.Int, description string) types.Log {
	return build(Governance, events.RoleGovernance, events.KindProposalCreated, nil,
		id, proposer, []common.Address{}, []*big.Int{}, []string{}, [][]byte{}, voteStart, voteEnd, description)
}

func ProposalCostCharged(id *big.Int, proposer common.Address, categoryID, cost *big.Int) types.Log {
	return build(Governance, events.RoleGovernance, events.KindProposalCostCharged,
		[]any{id, proposer}, categoryID, cost)
}

func BetPlaced(id *big.Int, bettor common.Address, support bool, amount *big.Int) types.Log {
	return build(PredictionMarket, events.RolePredictionMarket, events.KindBetPlaced,
		[]any{id, bettor}, support, amount)
}

func MarketResolved(id *big.Int, outcome bool, totalYes, totalNo, platformFee *big.Int) types.Log {
	return build(PredictionMarket, events.RolePredictionMarket, events.KindMarketResolved,
		[]any{id}, outcome, totalYes, totalNo, platformFee)
}

func Claimed(id *big.Int, bettor common.Address, payout *big.Int) types.Log {
	return build(PredictionMarket, events.RolePredictionMarket, events.KindClaimed,
		[]any{id, bettor}, payout)
}

func AgentRegistered(agent common.Address) types.Log {
	return build(AgentRegistry, events.RoleAgentRegistry, events.KindAgentRegistered, []any{agent})
}

func event(role events.Role, kind events.Kind) abi.Event {
	abis, err := decoder.ContractABIs()
	if err != nil {
		panic(err)
	}

	ev, ok := abis[role].Events[string(kind)]
	if !ok {
		panic("no event " + string(kind) + " for " + string(role))
	}

	return ev
}

func build(contract common.Address, role events.Role, kind events.Kind, indexed []any, values ...any) types.Log {
	ev := event(role, kind)

	topics := []common.Hash{ev.ID}
	if len(indexed) > 0 {
		query := make([][]any, len(indexed))
		for i, v := range indexed {
			query[i] = []any{v}
		}

		rules, err := abi.MakeTopics(query...)
		if err != nil {
			panic(err)
		}
		for _, rule := range rules {
			topics = append(topics, rule[0])
		}
	}

	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		panic(err)
	}

	return types.Log{
		Address: contract,
		Topics:  topics,
		Data:    data,
	}
}
