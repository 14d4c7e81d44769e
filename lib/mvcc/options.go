package mvcc

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// DefaultMaxVersions is the chain length above which the collector considers a key.
const DefaultMaxVersions = 100

// Options configures an engine during initialization
type Options[V any] struct {
	// MaxVersions is the per-key version count above which GarbageCollect
	// prunes that key. Values < 1 are replaced with DefaultMaxVersions.
	MaxVersions int

	// GCInterval enables the background collector (0 = GC only on demand).
	GCInterval time.Duration

	// CloneValue duplicates values on write, read and Snapshot (nil = values are shared).
	CloneValue func(V) V

	// Metrics receives the engine metrics (nil = the engine creates its own set).
	// A set must not be shared between engines since metric names are fixed.
	Metrics *metrics.Set
}

// DefaultOptions returns the default engine options
func DefaultOptions[V any]() *Options[V] {
	return &Options[V]{
		MaxVersions: DefaultMaxVersions,
		GCInterval:  0,
	}
}

// CloneBytes is a CloneValue implementation for []byte values.
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
