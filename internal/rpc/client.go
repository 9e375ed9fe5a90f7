package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/MarketIndexor/pkg/rpc"
)

var (
	_ pkgrpc.LogSource     = (*Client)(nil)
	_ pkgrpc.ChainIDReader = (*Client)(nil)
)

const (
	methodBlockNumber = "eth_blockNumber"
	methodChainID     = "eth_chainId"
	methodGetLogs     = "eth_getLogs"
)

// Client is the JSON-RPC log source. Every request is bounded by the configured
// timeout and retried with exponential backoff when the failure looks transient.
type Client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	retry   *config.RetryConfig
	timeout time.Duration
	log     *logger.Logger
}

// NewClient creates a new RPC client connected to cfg.RPCURL.
func NewClient(ctx context.Context, cfg config.IndexerConfig, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		retry:   cfg.Retry,
		timeout: cfg.RequestTimeout.Duration,
		log:     log,
	}, nil
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// CurrentHeight returns the latest block number reported by the node.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, methodBlockNumber, func(ctx context.Context) error {
		var err error
		height, err = c.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}

	return height, nil
}

// ChainID returns the chain id served by the node.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var id *big.Int
	err := c.call(ctx, methodChainID, func(ctx context.Context) error {
		var err error
		id, err = c.eth.ChainID(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}

	return id.Uint64(), nil
}

// FetchLogs returns the logs of address with a first topic in topics over [fromBlock, toBlock].
// A range refused for returning too many results is split and fetched in order.
func (c *Client) FetchLogs(
	ctx context.Context,
	address common.Address,
	topics []common.Hash,
	fromBlock, toBlock uint64,
) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	logs, err := c.fetchRange(ctx, address, topics, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("get logs for %s in [%d, %d]: %w", address.Hex(), fromBlock, toBlock, err)
	}

	return logs, nil
}

func (c *Client) fetchRange(
	ctx context.Context,
	address common.Address,
	topics []common.Hash,
	fromBlock, toBlock uint64,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{topics},
	}

	var logs []types.Log
	err := c.call(ctx, methodGetLogs, func(ctx context.Context) error {
		return c.rpc.CallContext(ctx, &logs, methodGetLogs, toFilterArg(query))
	})
	if err == nil {
		return logs, nil
	}

	tooMany, msg := IsTooManyResultsError(err)
	if !tooMany || fromBlock == toBlock {
		return nil, err
	}

	split := fromBlock + (toBlock-fromBlock)/2
	if from, to, ok := ParseSuggestedBlockRange(msg); ok && from == fromBlock && to < toBlock {
		split = to
	}

	RPCRangeSplitInc()
	c.log.Debugf("too many results for [%d, %d], splitting at %d", fromBlock, toBlock, split)

	left, err := c.fetchRange(ctx, address, topics, fromBlock, split)
	if err != nil {
		return nil, err
	}
	right, err := c.fetchRange(ctx, address, topics, split+1, toBlock)
	if err != nil {
		return nil, err
	}

	return append(left, right...), nil
}

// call runs fn with retries, a per attempt timeout and request metrics.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	RPCMethodInc(method)
	start := time.Now()

	err := retryWithBackoff(ctx, c.retry, c.log, method, func() error {
		if c.timeout <= 0 {
			return fn(ctx)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		return fn(attemptCtx)
	})

	RPCMethodDuration(method, time.Since(start))
	if err != nil {
		RPCMethodError(method, errorType(err))
	}

	return err
}

func errorType(err error) string {
	if tooMany, _ := IsTooManyResultsError(err); tooMany {
		return "too_many_results"
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case retryableError(err):
		return "transient"
	default:
		return "other"
	}
}

// toFilterArg converts ethereum.FilterQuery to the format expected by eth_getLogs.
func toFilterArg(q ethereum.FilterQuery) any {
	arg := map[string]any{
		"topics": q.Topics,
	}

	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
	} else {
		if q.FromBlock != nil {
			arg["fromBlock"] = toBlockNumArg(q.FromBlock.Uint64())
		}
		if q.ToBlock != nil {
			arg["toBlock"] = toBlockNumArg(q.ToBlock.Uint64())
		}
	}

	if len(q.Addresses) == 1 {
		arg["address"] = q.Addresses[0]
	} else if len(q.Addresses) > 1 {
		arg["address"] = q.Addresses
	}

	return arg
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
