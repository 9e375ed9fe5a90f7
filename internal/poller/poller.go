// Package poller drives the indexing loop: it reads the checkpoint, fetches a bounded
// block range from every indexed contract, projects the merged logs in chain order and
// advances the checkpoint.
package poller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/MarketIndexor/internal/decoder"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/internal/metrics"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/goran-ethernal/MarketIndexor/pkg/rpc"
	"github.com/goran-ethernal/MarketIndexor/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// State is the poll loop phase.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateMerging    State = "merging"
	StateProjecting State = "projecting"
	StateAdvancing  State = "advancing"
	StateBackingOff State = "backing_off"
)

var allStates = []string{
	string(StateIdle),
	string(StateFetching),
	string(StateMerging),
	string(StateProjecting),
	string(StateAdvancing),
	string(StateBackingOff),
}

// EventDecoder turns raw logs into domain events and names what to fetch per contract role.
type EventDecoder interface {
	Contract(role events.Role) (common.Address, bool)
	Topics(role events.Role) []common.Hash
	Decode(raw types.Log) (events.Event, error)
}

// Projector persists a domain event and returns the broadcast it produced, if any.
type Projector interface {
	Apply(ctx context.Context, ev events.Event) (*events.Broadcast, error)
}

// Notifier receives broadcasts. Broadcast must not block.
type Notifier interface {
	Broadcast(b *events.Broadcast) error
}

// Progress describes one completed cycle.
type Progress struct {
	From     uint64
	To       uint64
	Safe     uint64
	Logs     int
	Applied  int
	Skipped  int
	CaughtUp bool
	Backlog  bool
}

// Poller is the single writer of the checkpoint and the projection.
type Poller struct {
	cfg        config.IndexerConfig
	source     rpc.LogSource
	checkpoint storage.CheckpointStore
	decoder    EventDecoder
	projector  Projector
	notifier   Notifier
	log        *logger.Logger

	mu    sync.RWMutex
	state State
}

// New creates a poll loop. notifier may be nil.
func New(
	cfg config.IndexerConfig,
	source rpc.LogSource,
	checkpoint storage.CheckpointStore,
	dec EventDecoder,
	projector Projector,
	notifier Notifier,
	log *logger.Logger,
) (*Poller, error) {
	if source == nil {
		return nil, errors.New("log source is required")
	}
	if checkpoint == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if dec == nil {
		return nil, errors.New("decoder is required")
	}
	if projector == nil {
		return nil, errors.New("projector is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	cfg.ApplyDefaults()

	return &Poller{
		cfg:        cfg,
		source:     source,
		checkpoint: checkpoint,
		decoder:    dec,
		projector:  projector,
		notifier:   notifier,
		log:        log,
		state:      StateIdle,
	}, nil
}

// State returns the current phase.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.state
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()

	metrics.PollerStateSet(string(s), allStates)
}

// Run polls until ctx is cancelled. A cycle that already started fetching finishes
// its projection and checkpoint write before Run returns. Failed cycles are retried
// after one poll interval; Run only returns once ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Infow("poll loop started",
		"poll_interval", p.cfg.PollInterval.String(),
		"chunk_size", p.cfg.ChunkSize,
		"safety_buffer", p.cfg.GetSafetyBuffer(),
	)
	metrics.ComponentHealthSet(p.log.GetComponent(), true)

	defer func() {
		p.setState(StateIdle)
		metrics.ComponentHealthSet(p.log.GetComponent(), false)
		p.log.Info("poll loop stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		progress, err := p.Step(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			p.setState(StateBackingOff)
			p.log.Warnw("poll cycle failed, backing off",
				"error", err,
				"backoff", p.cfg.PollInterval.String(),
			)
		case progress.Backlog:
			continue
		default:
			p.setState(StateIdle)
		}

		if err := sleep(ctx, p.cfg.PollInterval.Duration); err != nil {
			return nil
		}
	}
}

// Step runs one cycle. It returns without fetching when no new safe block exists.
func (p *Poller) Step(ctx context.Context) (Progress, error) {
	start := time.Now()
	p.setState(StateFetching)

	last, err := p.checkpoint.Read(ctx)
	if err != nil {
		metrics.CycleErrorsInc("checkpoint")
		return Progress{}, fmt.Errorf("read checkpoint: %w", err)
	}

	height, err := p.source.CurrentHeight(ctx)
	if err != nil {
		metrics.CycleErrorsInc("height")
		return Progress{}, fmt.Errorf("get chain height: %w", err)
	}

	progress := Progress{Safe: safeHeight(height, p.cfg.GetSafetyBuffer())}
	metrics.SafeHeightSet(progress.Safe)

	progress.From = last + 1
	if progress.From > progress.Safe {
		progress.CaughtUp = true
		p.log.Debugw("no new safe blocks", "last_processed", last, "safe", progress.Safe)
		return progress, nil
	}
	progress.To = min(progress.From+p.cfg.ChunkSize-1, progress.Safe)

	logs, err := p.fetch(ctx, progress.From, progress.To)
	if err != nil {
		metrics.CycleErrorsInc("fetch")
		return Progress{}, fmt.Errorf("fetch logs [%d, %d]: %w", progress.From, progress.To, err)
	}
	progress.Logs = len(logs)

	p.setState(StateMerging)
	sortLogs(logs)

	// the rest of the cycle completes even if ctx is cancelled from here on
	applyCtx := context.WithoutCancel(ctx)

	p.setState(StateProjecting)
	for _, raw := range logs {
		applied, err := p.process(applyCtx, raw)
		if err != nil {
			metrics.CycleErrorsInc("project")
			return Progress{}, err
		}
		if applied {
			progress.Applied++
		} else {
			progress.Skipped++
		}
	}

	p.setState(StateAdvancing)
	if err := p.checkpoint.Write(applyCtx, progress.To); err != nil {
		metrics.CycleErrorsInc("advance")
		return Progress{}, fmt.Errorf("write checkpoint %d: %w", progress.To, err)
	}

	progress.Backlog = progress.To < progress.Safe

	blocks := progress.To - progress.From + 1
	elapsed := time.Since(start)
	metrics.LastProcessedBlockSet(progress.To)
	metrics.BlocksProcessedInc(blocks)
	metrics.CycleTimeLog(elapsed)
	if elapsed > 0 {
		metrics.IndexingRateLog(float64(blocks) / elapsed.Seconds())
	}

	p.log.Infow("processed block range",
		"from", progress.From,
		"to", progress.To,
		"safe", progress.Safe,
		"logs", progress.Logs,
		"applied", progress.Applied,
		"skipped", progress.Skipped,
		"duration", elapsed,
	)

	return progress, nil
}

// fetch queries every configured contract over [from, to] concurrently.
// Any failure fails the whole fetch.
func (p *Poller) fetch(ctx context.Context, from, to uint64) ([]types.Log, error) {
	results := make([][]types.Log, len(events.Roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range events.Roles {
		address, ok := p.decoder.Contract(role)
		if !ok {
			continue
		}
		topics := p.decoder.Topics(role)

		g.Go(func() error {
			logs, err := p.source.FetchLogs(gctx, address, topics, from, to)
			if err != nil {
				return fmt.Errorf("%s contract %s: %w", role, address.Hex(), err)
			}
			results[i] = logs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []types.Log
	for _, logs := range results {
		merged = append(merged, logs...)
	}

	return merged, nil
}

// process decodes and projects raw, then broadcasts the result. Undecodable logs are
// skipped and reported as not applied.
func (p *Poller) process(ctx context.Context, raw types.Log) (bool, error) {
	ev, err := p.decoder.Decode(raw)
	switch {
	case errors.Is(err, decoder.ErrUnrecognizedEvent):
		metrics.LogsProcessedInc("unrecognized", 1)
		p.log.Debugw("skipping unrecognized log",
			"address", raw.Address.Hex(),
			"block", raw.BlockNumber,
			"index", raw.Index,
		)
		return false, nil
	case decoder.IsMalformed(err):
		metrics.LogsProcessedInc("malformed", 1)
		p.log.Warnw("skipping malformed log",
			"error", err,
			"address", raw.Address.Hex(),
			"block", raw.BlockNumber,
			"index", raw.Index,
			"tx", raw.TxHash.Hex(),
		)
		return false, nil
	case err != nil:
		metrics.LogsProcessedInc("decode_error", 1)
		p.log.Errorw("skipping log after decoder failure",
			"error", err,
			"address", raw.Address.Hex(),
			"block", raw.BlockNumber,
			"index", raw.Index,
			"tx", raw.TxHash.Hex(),
		)
		return false, nil
	}

	broadcast, err := p.projector.Apply(ctx, ev)
	if err != nil {
		return false, err
	}
	metrics.LogsProcessedInc("applied", 1)

	if broadcast != nil && p.notifier != nil {
		if err := p.notifier.Broadcast(broadcast); err != nil {
			p.log.Warnw("broadcast failed", "type", broadcast.Type, "error", err)
		}
	}

	return true, nil
}

// safeHeight is height minus buffer, floored at zero.
func safeHeight(height, buffer uint64) uint64 {
	if height < buffer {
		return 0
	}
	return height - buffer
}

// sortLogs orders logs by (BlockNumber, Index), keeping fetch order for equal keys.
func sortLogs(logs []types.Log) {
	slices.SortStableFunc(logs, func(a, b types.Log) int {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
