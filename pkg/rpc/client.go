package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogSource is the upstream chain view used by the poll loop.
// Implementations must be safe for concurrent FetchLogs calls.
type LogSource interface {
	// CurrentHeight returns the latest block number reported by the node.
	// The value is optimistic: logs near the head may not be queryable yet.
	CurrentHeight(ctx context.Context) (uint64, error)

	// FetchLogs returns the logs emitted by address whose first topic is one of topics,
	// for blocks in [fromBlock, toBlock].
	FetchLogs(
		ctx context.Context,
		address common.Address,
		topics []common.Hash,
		fromBlock, toBlock uint64,
	) ([]types.Log, error)
}

// ChainIDReader reports the chain the node serves.
type ChainIDReader interface {
	ChainID(ctx context.Context) (uint64, error)
}
