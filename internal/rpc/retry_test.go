package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	icommon "github.com/goran-ethernal/MarketIndexor/internal/common"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNetError implements net.Error for testing
type mockNetError struct {
	msg     string
	timeout bool
}

func (e *mockNetError) Error() string   { return e.msg }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

func fastRetry(attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    icommon.NewDuration(time.Millisecond),
		MaxBackoff:        icommon.NewDuration(10 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{&mockNetError{msg: "i/o timeout", timeout: true}, true},
		{&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{fmt.Errorf("post: %w", syscall.ECONNRESET), true},
		{syscall.EPIPE, true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("HTTP 429"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("504 Gateway Timeout"), true},
		{errors.New("no available connection"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("invalid params"), false},
		{errors.New("401 Unauthorized"), false},
		{errors.New("query returned more than 10000 results"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, retryableError(tt.err), "retryableError(%v)", tt.err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    icommon.NewDuration(1 * time.Second),
		MaxBackoff:        icommon.NewDuration(5 * time.Second),
		BackoffMultiplier: 2.0,
	}

	require.Zero(t, calculateBackoff(1, cfg))

	// attempt n waits initial * 2^(n-2), capped at max, ±25%
	expected := map[int]time.Duration{
		2:  1 * time.Second,
		3:  2 * time.Second,
		4:  4 * time.Second,
		10: 5 * time.Second,
	}
	for attempt, base := range expected {
		for range 10 {
			backoff := calculateBackoff(attempt, cfg)
			assert.GreaterOrEqual(t, backoff, base*3/4, "attempt %d", attempt)
			assert.LessOrEqual(t, backoff, base*5/4, "attempt %d", attempt)
		}
	}
}

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewNopLogger()
	transient := &mockNetError{msg: "temporary error", timeout: true}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fastRetry(5), log, "test", func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		expected := errors.New("invalid params")
		err := retryWithBackoff(context.Background(), fastRetry(5), log, "test", func() error {
			calls++
			return expected
		})
		require.ErrorIs(t, err, expected)
		require.ErrorContains(t, err, "non-retryable error on attempt 1/5")
		require.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), fastRetry(3), log, "test", func() error {
			calls++
			return transient
		})
		require.ErrorIs(t, err, transient)
		require.ErrorContains(t, err, "all 3 attempts failed")
		require.Equal(t, 3, calls)
	})

	t.Run("observes cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retryWithBackoff(ctx, fastRetry(10), log, "test", func() error {
			calls++
			if calls == 2 {
				cancel()
			}
			return transient
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 2, calls)
	})

	t.Run("observes deadline during backoff", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		cfg := &config.RetryConfig{
			MaxAttempts:       10,
			InitialBackoff:    icommon.NewDuration(time.Second),
			MaxBackoff:        icommon.NewDuration(time.Second),
			BackoffMultiplier: 1,
		}

		calls := 0
		err := retryWithBackoff(ctx, cfg, log, "test", func() error {
			calls++
			return transient
		})
		require.ErrorContains(t, err, "context cancelled during backoff")
		require.Equal(t, 1, calls)
	})

	t.Run("nil config runs once", func(t *testing.T) {
		calls := 0
		expected := errors.New("boom")
		err := retryWithBackoff(context.Background(), nil, log, "test", func() error {
			calls++
			return expected
		})
		require.ErrorIs(t, err, expected)
		require.Equal(t, 1, calls)
	})
}
