// Package rpctest runs a local Anvil node for integration tests.
package rpctest

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"
)

const (
	// Anvil default private key (first account)
	anvilPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	txGasLimit = 200_000
)

// getFreePort asks the kernel for a free open port that is ready to use
func getFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to get free port")

	port := listener.Addr().(*net.TCPAddr).Port

	err = listener.Close()
	require.NoError(t, err, "failed to close port listener")

	return port
}

// AnvilInstance manages an Anvil test node
type AnvilInstance struct {
	cmd        *exec.Cmd
	URL        string
	Client     *ethclient.Client
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
}

// StartAnvil starts an Anvil instance that mines a block per transaction.
func StartAnvil(t *testing.T) *AnvilInstance {
	t.Helper()

	port := getFreePort(t)
	anvilURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	cmd := exec.Command("anvil", "--port", fmt.Sprintf("%d", port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	require.NoError(t, cmd.Start(), "failed to start anvil")

	instance := &AnvilInstance{cmd: cmd, URL: anvilURL}
	t.Cleanup(instance.Stop)

	client, err := ethclient.Dial(anvilURL)
	require.NoError(t, err, "failed to connect to anvil")
	instance.Client = client

	require.Eventually(t, func() bool {
		chainID, err := client.ChainID(t.Context())
		if err != nil {
			return false
		}
		instance.ChainID = chainID
		return true
	}, 10*time.Second, 100*time.Millisecond, "anvil did not become ready")

	instance.PrivateKey, err = crypto.HexToECDSA(anvilPrivateKey)
	require.NoError(t, err, "failed to parse private key")

	return instance
}

// Stop stops the Anvil instance
func (a *AnvilInstance) Stop() {
	if a.Client != nil {
		a.Client.Close()
	}
	if a.cmd != nil && a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
		_ = a.cmd.Wait()
	}
}

// Mine mines the specified number of empty blocks
func (a *AnvilInstance) Mine(t *testing.T, numBlocks int) {
	t.Helper()

	for range numBlocks {
		var blockHash string
		err := a.Client.Client().Call(&blockHash, "evm_mine")
		require.NoError(t, err, "failed to mine block")
	}
}

// GetBlockNumber returns the current block number
func (a *AnvilInstance) GetBlockNumber(t *testing.T) uint64 {
	t.Helper()

	blockNumber, err := a.Client.BlockNumber(t.Context())
	require.NoError(t, err, "failed to get block number")

	return blockNumber
}

// SendTx signs and sends a transaction from the default account and waits for its receipt.
// A nil to deploys data as init code.
func (a *AnvilInstance) SendTx(t *testing.T, to *common.Address, data []byte) *types.Receipt {
	t.Helper()

	ctx := t.Context()
	from := crypto.PubkeyToAddress(a.PrivateKey.PublicKey)

	nonce, err := a.Client.PendingNonceAt(ctx, from)
	require.NoError(t, err, "failed to get nonce")

	gasPrice, err := a.Client.SuggestGasPrice(ctx)
	require.NoError(t, err, "failed to get gas price")

	tx, err := types.SignNewTx(a.PrivateKey, types.LatestSignerForChainID(a.ChainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      txGasLimit,
		To:       to,
		Data:     data,
	})
	require.NoError(t, err, "failed to sign transaction")
	require.NoError(t, a.Client.SendTransaction(ctx, tx), "failed to send transaction")

	var receipt *types.Receipt
	require.Eventually(t, func() bool {
		receipt, err = a.Client.TransactionReceipt(ctx, tx.Hash())
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "transaction was not mined")
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status, "transaction reverted")

	return receipt
}

// DeployLogEmitter deploys a contract that, on every call, emits a log with topics
// [topic0, msg.sender] and empty data.
func (a *AnvilInstance) DeployLogEmitter(t *testing.T, topic0 common.Hash) common.Address {
	t.Helper()

	receipt := a.SendTx(t, nil, LogEmitterInitCode(topic0))
	require.NotEqual(t, common.Address{}, receipt.ContractAddress)

	return receipt.ContractAddress
}

// LogEmitterInitCode returns init code whose runtime is
// CALLER PUSH32 topic0 PUSH1 0 PUSH1 0 LOG2 STOP.
func LogEmitterInitCode(topic0 common.Hash) []byte {
	runtime := []byte{0x33, 0x7f}
	runtime = append(runtime, topic0.Bytes()...)
	runtime = append(runtime, 0x60, 0x00, 0x60, 0x00, 0xa2, 0x00)

	size := byte(len(runtime))
	// PUSH1 size PUSH1 offset PUSH1 0 CODECOPY PUSH1 size PUSH1 0 RETURN
	init := []byte{0x60, size, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, size, 0x60, 0x00, 0xf3}

	return append(init, runtime...)
}

// SkipIfAnvilNotAvailable skips the test if Anvil is not available
func SkipIfAnvilNotAvailable(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("anvil"); err != nil {
		t.Skip("anvil not found in PATH, skipping integration test")
	}
}
