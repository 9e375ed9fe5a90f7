package decoder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
)

const governanceABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "proposalId", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "proposer", "type": "address"},
      {"indexed": false, "internalType": "address[]", "name": "targets", "type": "address[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "values", "type": "uint256[]"},
      {"indexed": false, "internalType": "string[]", "name": "signatures", "type": "string[]"},
      {"indexed": false, "internalType": "bytes[]", "name": "calldatas", "type": "bytes[]"},
      {"indexed": false, "internalType": "uint256", "name": "voteStart", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "voteEnd", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "description", "type": "string"}
    ],
    "name": "ProposalCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "proposalId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "proposer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "categoryId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "cost", "type": "uint256"}
    ],
    "name": "ProposalCostCharged",
    "type": "event"
  }
]`

const predictionMarketABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "proposalId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "bettor", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "support", "type": "bool"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "BetPlaced",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "proposalId", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "outcome", "type": "bool"},
      {"indexed": false, "internalType": "uint256", "name": "totalYes", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalNo", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "platformFee", "type": "uint256"}
    ],
    "name": "MarketResolved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "proposalId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "bettor", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "payout", "type": "uint256"}
    ],
    "name": "Claimed",
    "type": "event"
  }
]`

const agentRegistryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "agent", "type": "address"}
    ],
    "name": "AgentRegistered",
    "type": "event"
  }
]`

var (
	contractABIs     map[events.Role]abi.ABI
	contractABIsOnce sync.Once
	contractABIsErr  error
)

// ContractABIs returns the parsed event ABI of each indexed contract role.
func ContractABIs() (map[events.Role]abi.ABI, error) {
	contractABIsOnce.Do(func() {
		sources := map[events.Role]string{
			events.RoleGovernance:       governanceABIJSON,
			events.RolePredictionMarket: predictionMarketABIJSON,
			events.RoleAgentRegistry:    agentRegistryABIJSON,
		}

		parsed := make(map[events.Role]abi.ABI, len(sources))
		for role, src := range sources {
			contractABI, err := abi.JSON(strings.NewReader(src))
			if err != nil {
				contractABIsErr = fmt.Errorf("parse %s abi: %w", role, err)
				return
			}
			parsed[role] = contractABI
		}
		contractABIs = parsed
	})

	return contractABIs, contractABIsErr
}
