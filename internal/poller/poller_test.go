package poller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	icommon "github.com/goran-ethernal/MarketIndexor/internal/common"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder/decodertest"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	rpcmocks "github.com/goran-ethernal/MarketIndexor/internal/rpc/mocks"
	storagemocks "github.com/goran-ethernal/MarketIndexor/internal/storage/mocks"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	bettor = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	agent  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// recorder is a projector and notifier that logs every call in order.
type recorder struct {
	mu      sync.Mutex
	calls   []string
	failAt  int
	onApply func(ev events.Event)
}

func (r *recorder) Apply(_ context.Context, ev events.Event) (*events.Broadcast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.onApply != nil {
		r.onApply(ev)
	}

	m := ev.Metadata()
	key := fmt.Sprintf("%s@%d/%d", ev.Kind(), m.BlockNumber, m.LogIndex)
	r.calls = append(r.calls, "apply "+key)

	if r.failAt > 0 && len(r.applied()) == r.failAt {
		return nil, storage.Unavailable("insert bet", errors.New("database is locked"))
	}

	return &events.Broadcast{Type: events.BroadcastType(key)}, nil
}

func (r *recorder) Broadcast(b *events.Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, "broadcast "+string(b.Type))
	return nil
}

func (r *recorder) applied() []string {
	var out []string
	for _, c := range r.calls {
		if len(c) > 6 && c[:6] == "apply " {
			out = append(out, c[6:])
		}
	}
	return out
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

type fixture struct {
	source     *rpcmocks.LogSource
	checkpoint *storagemocks.CheckpointStore
	decoder    *decoder.Decoder
	recorder   *recorder
	poller     *Poller
}

func newFixture(t *testing.T, cfg config.IndexerConfig) *fixture {
	t.Helper()

	dec, err := decoder.New(decodertest.Contracts(), logger.NewNopLogger())
	require.NoError(t, err)

	f := &fixture{
		source:     rpcmocks.NewLogSource(t),
		checkpoint: storagemocks.NewCheckpointStore(t),
		decoder:    dec,
		recorder:   &recorder{},
	}

	f.poller, err = New(cfg, f.source, f.checkpoint, dec, f.recorder, f.recorder, logger.NewNopLogger())
	require.NoError(t, err)

	return f
}

func defaultConfig() config.IndexerConfig {
	return config.IndexerConfig{
		PollInterval: icommon.NewDuration(time.Hour),
		ChunkSize:    2000,
	}
}

// expectFetch registers one FetchLogs call per contract role over [from, to].
func (f *fixture) expectFetch(from, to uint64, logs map[common.Address][]types.Log) {
	for _, role := range events.Roles {
		address, _ := f.decoder.Contract(role)
		f.source.EXPECT().
			FetchLogs(mock.Anything, address, f.decoder.Topics(role), from, to).
			Return(logs[address], nil).
			Once()
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(defaultConfig(), nil, nil, nil, nil, nil, logger.NewNopLogger())
	require.ErrorContains(t, err, "log source is required")
}

func TestStep_SafetyBuffer(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.checkpoint.EXPECT().Read(mock.Anything).Return(979, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(1000, nil).Once()
	f.expectFetch(980, 990, nil)
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(990)).Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, Progress{From: 980, To: 990, Safe: 990}, progress)
	require.Equal(t, StateAdvancing, f.poller.State())
}

func TestStep_ZeroSafetyBuffer(t *testing.T) {
	cfg := defaultConfig()
	zero := uint64(0)
	cfg.SafetyBuffer = &zero
	f := newFixture(t, cfg)

	f.checkpoint.EXPECT().Read(mock.Anything).Return(979, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(1000, nil).Once()
	f.expectFetch(980, 1000, nil)
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(1000)).Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, Progress{From: 980, To: 1000, Safe: 1000}, progress)
}

func TestStep_CaughtUp(t *testing.T) {
	tests := []struct {
		name       string
		checkpoint uint64
		height     uint64
		safe       uint64
	}{
		{"at safe height", 990, 1000, 990},
		{"height below buffer", 0, 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultConfig())

			f.checkpoint.EXPECT().Read(mock.Anything).Return(tt.checkpoint, nil).Once()
			f.source.EXPECT().CurrentHeight(mock.Anything).Return(tt.height, nil).Once()

			progress, err := f.poller.Step(context.Background())
			require.NoError(t, err)
			require.True(t, progress.CaughtUp)
			require.False(t, progress.Backlog)
			require.Equal(t, tt.safe, progress.Safe)
		})
	}
}

func TestStep_ChunkBound(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(10_000, nil).Once()
	f.expectFetch(1, 2000, nil)
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(2000)).Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2000), progress.To)
	require.True(t, progress.Backlog)
}

func TestStep_MergesInChainOrder(t *testing.T) {
	f := newFixture(t, defaultConfig())
	id := big.NewInt(1)

	f.checkpoint.EXPECT().Read(mock.Anything).Return(99, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(200, nil).Once()
	f.expectFetch(100, 190, map[common.Address][]types.Log{
		decodertest.Governance: {
			decodertest.At(decodertest.ProposalCreated(id, bettor, big.NewInt(1), big.NewInt(2), "# T\nbody"), 100, 0),
			decodertest.At(decodertest.ProposalCostCharged(id, bettor, big.NewInt(1), big.NewInt(5)), 100, 3),
		},
		decodertest.PredictionMarket: {
			decodertest.At(decodertest.MarketResolved(id, true, big.NewInt(1), big.NewInt(0), big.NewInt(0)), 150, 0),
			decodertest.At(decodertest.BetPlaced(id, bettor, true, big.NewInt(1)), 100, 2),
		},
		decodertest.AgentRegistry: {
			decodertest.At(decodertest.AgentRegistered(agent), 100, 1),
		},
	})

	var written []string
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(190)).
		Run(func(context.Context, uint64) { written = f.recorder.snapshot() }).
		Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, progress.Applied)

	expected := []string{
		"apply ProposalCreated@100/0", "broadcast ProposalCreated@100/0",
		"apply AgentRegistered@100/1", "broadcast AgentRegistered@100/1",
		"apply BetPlaced@100/2", "broadcast BetPlaced@100/2",
		"apply ProposalCostCharged@100/3", "broadcast ProposalCostCharged@100/3",
		"apply MarketResolved@150/0", "broadcast MarketResolved@150/0",
	}
	require.Equal(t, expected, f.recorder.snapshot())
	require.Equal(t, expected, written, "checkpoint advanced before the range was applied")
}

func TestStep_FetchErrorLeavesNoProgress(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(100, nil).Once()
	f.source.EXPECT().
		FetchLogs(mock.Anything, decodertest.PredictionMarket, mock.Anything, uint64(1), uint64(90)).
		Return(nil, errors.New("503 Service Unavailable")).Once()
	f.source.EXPECT().
		FetchLogs(mock.Anything, mock.Anything, mock.Anything, uint64(1), uint64(90)).
		Return([]types.Log{decodertest.At(decodertest.AgentRegistered(agent), 5, 0)}, nil).Maybe()

	_, err := f.poller.Step(context.Background())
	require.ErrorContains(t, err, "fetch logs [1, 90]")
	require.ErrorContains(t, err, "503 Service Unavailable")
	require.Empty(t, f.recorder.snapshot())
	f.checkpoint.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestStep_ProjectionErrorLeavesCheckpoint(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.recorder.failAt = 2

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(100, nil).Once()
	f.expectFetch(1, 90, map[common.Address][]types.Log{
		decodertest.PredictionMarket: {
			decodertest.At(decodertest.BetPlaced(big.NewInt(1), bettor, true, big.NewInt(1)), 10, 0),
			decodertest.At(decodertest.BetPlaced(big.NewInt(2), bettor, true, big.NewInt(1)), 11, 0),
			decodertest.At(decodertest.BetPlaced(big.NewInt(3), bettor, true, big.NewInt(1)), 12, 0),
		},
	})

	_, err := f.poller.Step(context.Background())
	require.ErrorIs(t, err, storage.ErrStorageUnavailable)
	require.Equal(t, []string{"BetPlaced@10/0", "BetPlaced@11/0"}, f.recorder.applied())
	f.checkpoint.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestStep_SkipsUndecodableLogs(t *testing.T) {
	f := newFixture(t, defaultConfig())

	truncated := decodertest.At(decodertest.BetPlaced(big.NewInt(1), bettor, true, big.NewInt(1)), 10, 0)
	truncated.Data = truncated.Data[:16]

	unknownTopic := decodertest.At(decodertest.AgentRegistered(agent), 10, 1)
	unknownTopic.Topics[0] = common.HexToHash("0xdeadbeef")

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(100, nil).Once()
	f.expectFetch(1, 90, map[common.Address][]types.Log{
		decodertest.PredictionMarket: {truncated},
		decodertest.AgentRegistry: {
			unknownTopic,
			decodertest.At(decodertest.AgentRegistered(agent), 11, 0),
		},
	})
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(90)).Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, progress.Logs)
	require.Equal(t, 1, progress.Applied)
	require.Equal(t, 2, progress.Skipped)
	require.Equal(t, []string{"AgentRegistered@11/0"}, f.recorder.applied())
}

// failingDecoder fails every log at failBlock with a non-malformed error.
type failingDecoder struct {
	*decoder.Decoder
	failBlock uint64
}

func (d failingDecoder) Decode(raw types.Log) (events.Event, error) {
	if raw.BlockNumber == d.failBlock {
		return nil, errors.New("abi table corrupted")
	}
	return d.Decoder.Decode(raw)
}

func TestStep_SkipsDecoderFailures(t *testing.T) {
	f := newFixture(t, defaultConfig())

	var err error
	f.poller, err = New(defaultConfig(), f.source, f.checkpoint,
		failingDecoder{Decoder: f.decoder, failBlock: 10}, f.recorder, f.recorder, logger.NewNopLogger())
	require.NoError(t, err)

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(100, nil).Once()
	f.expectFetch(1, 90, map[common.Address][]types.Log{
		decodertest.AgentRegistry: {
			decodertest.At(decodertest.AgentRegistered(agent), 10, 0),
			decodertest.At(decodertest.AgentRegistered(agent), 11, 0),
		},
	})
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(90)).Return(nil).Once()

	progress, err := f.poller.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, progress.Applied)
	require.Equal(t, 1, progress.Skipped)
	require.Equal(t, []string{"AgentRegistered@11/0"}, f.recorder.applied())
}

func TestRun_DrainsBacklogWithoutSleeping(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.source.EXPECT().CurrentHeight(mock.Anything).Return(4010, nil)
	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.expectFetch(1, 2000, nil)
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(2000)).Return(nil).Once()
	f.checkpoint.EXPECT().Read(mock.Anything).Return(2000, nil).Once()
	f.expectFetch(2001, 4000, nil)
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(4000)).
		Run(func(context.Context, uint64) { cancel() }).
		Return(nil).Once()

	done := make(chan error, 1)
	go func() { done <- f.poller.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop slept while a backlog remained")
	}
	require.Equal(t, StateIdle, f.poller.State())
}

func TestRun_BacksOffAfterFailure(t *testing.T) {
	cfg := defaultConfig()
	cfg.PollInterval = icommon.NewDuration(20 * time.Millisecond)
	f := newFixture(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var failedAt time.Time
	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil)
	f.source.EXPECT().CurrentHeight(mock.Anything).
		Run(func(context.Context) { failedAt = time.Now() }).
		Return(0, errors.New("connection refused")).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(20, nil).Once()
	f.expectFetch(1, 10, nil)

	var retriedAfter time.Duration
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(10)).
		Run(func(context.Context, uint64) {
			retriedAfter = time.Since(failedAt)
			cancel()
		}).
		Return(nil).Once()

	require.NoError(t, f.poller.Run(ctx))
	require.GreaterOrEqual(t, retriedAfter, 20*time.Millisecond)
}

func TestRun_FinishesCycleOnCancel(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancelled while the first of two events is projected
	f.recorder.onApply = func(events.Event) { cancel() }

	f.checkpoint.EXPECT().Read(mock.Anything).Return(0, nil).Once()
	f.source.EXPECT().CurrentHeight(mock.Anything).Return(100, nil).Once()
	f.expectFetch(1, 90, map[common.Address][]types.Log{
		decodertest.AgentRegistry: {
			decodertest.At(decodertest.AgentRegistered(agent), 3, 0),
			decodertest.At(decodertest.AgentRegistered(bettor), 4, 0),
		},
	})
	f.checkpoint.EXPECT().Write(mock.Anything, uint64(90)).
		RunAndReturn(func(ctx context.Context, _ uint64) error { return ctx.Err() }).
		Once()

	require.NoError(t, f.poller.Run(ctx))
	require.Len(t, f.recorder.applied(), 2)
}

func TestRun_StopsBeforeFirstCycle(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.poller.Run(ctx))
}

func TestSafeHeight(t *testing.T) {
	require.Equal(t, uint64(990), safeHeight(1000, 10))
	require.Equal(t, uint64(0), safeHeight(10, 10))
	require.Equal(t, uint64(0), safeHeight(3, 10))
	require.Equal(t, uint64(42), safeHeight(42, 0))
}

func TestSortLogs_Stable(t *testing.T) {
	logs := []types.Log{
		{BlockNumber: 2, Index: 0, TxHash: common.HexToHash("0x1")},
		{BlockNumber: 1, Index: 5},
		{BlockNumber: 2, Index: 0, TxHash: common.HexToHash("0x2")},
		{BlockNumber: 1, Index: 1},
	}

	sortLogs(logs)

	require.Equal(t, uint64(1), logs[0].BlockNumber)
	require.Equal(t, uint(1), logs[0].Index)
	require.Equal(t, uint(5), logs[1].Index)
	require.Equal(t, common.HexToHash("0x1"), logs[2].TxHash)
	require.Equal(t, common.HexToHash("0x2"), logs[3].TxHash)
}
