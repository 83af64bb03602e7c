// Package prefetch implements the thread-pool and process-pool prefetching
// iterators of spec §4.C/§4.D: bounded read-ahead over a MapDataset or
// IterDataset parent, with checkpointable cursor state.
package prefetch

import "time"

// ReadOptions configures a thread-prefetch iterator (spec §6).
type ReadOptions struct {
	// PrefetchBufferSize is the bounded queue depth B. Zero degenerates
	// to synchronous access.
	PrefetchBufferSize int

	// NumThreads bounds how many futures may be in flight concurrently.
	// Must be >= 1 whenever PrefetchBufferSize > 0.
	NumThreads int
}

// DefaultReadOptions returns the implementation-defined default: a small
// read-ahead window driven by a couple of worker goroutines.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{PrefetchBufferSize: 8, NumThreads: 2}
}

// MultiprocessingOptions configures the process-prefetch pool (spec §6).
type MultiprocessingOptions struct {
	// NumWorkers is the worker pool size W; must be >= 1.
	NumWorkers int

	// PerWorkerBufferSize bounds each worker's handoff queue depth.
	PerWorkerBufferSize int

	// WorkerStartMethod is carried for parity with the original
	// multiprocessing-based pool's tunable (spec §6); Go workers are
	// goroutines (SPEC_FULL.md §2), and the pool never reads this field,
	// so it has no effect on how workers are started.
	WorkerStartMethod string

	// RecordInterval is the minimum wall-clock gap between consecutive
	// state snapshots a worker emits (spec §4.D step 4, default 3s).
	RecordInterval time.Duration
}

// DefaultMultiprocessingOptions returns sensible pool defaults.
func DefaultMultiprocessingOptions() MultiprocessingOptions {
	return MultiprocessingOptions{
		NumWorkers:          1,
		PerWorkerBufferSize: 4,
		WorkerStartMethod:   "goroutine",
		RecordInterval:      3 * time.Second,
	}
}

// ShardOptions configures a shard split (spec §6).
type ShardOptions struct {
	ShardIndex    int
	ShardCount    int
	DropRemainder bool
}
