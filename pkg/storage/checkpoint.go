package storage

import "context"

// CheckpointStore persists the last fully processed block height.
type CheckpointStore interface {
	// Read returns the stored height, or the configured genesis height when none is stored.
	Read(ctx context.Context) (uint64, error)

	// Write stores height. A height lower than the stored one is ignored.
	Write(ctx context.Context, height uint64) error
}
