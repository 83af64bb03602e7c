package prefetch

import "errors"

var (
	// ErrClosed is returned by any prefetch iterator method invoked after
	// Close (spec §7.5: use-after-close is a programming error).
	ErrClosed = errors.New("prefetch: iterator closed")

	// ErrNumWorkers is returned when MultiprocessingOptions.NumWorkers < 1
	// (spec §4.D's "W >= 1 is required").
	ErrNumWorkers = errors.New("prefetch: num_workers must be >= 1")

	// ErrMultipleProcessPrefetch is returned when a pipeline already
	// contains a process-prefetch node (spec §4.D: "at most one
	// process-prefetch node may appear in a pipeline").
	ErrMultipleProcessPrefetch = errors.New("prefetch: at most one process-prefetch node is allowed per pipeline")

	// ErrWorkerLost is the fatal worker-death error (spec §4.D, §7.4):
	// treated as an upstream error, no per-element retry.
	ErrWorkerLost = errors.New("prefetch: worker died")
)
