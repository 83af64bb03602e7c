package prefetch

import (
	"context"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// threadIterDataset wraps a MapDataset in an iter-dataset whose iterator
// reads ahead on a bounded pool of goroutines (spec §4.C).
type threadIterDataset struct {
	parent      dataset.MapDataset
	opts        ReadOptions
	allowSparse bool
}

// Thread wraps parent in a thread-pool prefetch iter-dataset. Per spec
// §4.C, opts.PrefetchBufferSize == 0 degenerates to synchronous access
// (each Next blocks on parent.At directly, on the caller's goroutine).
func Thread(parent dataset.MapDataset, opts ReadOptions, allowSparse bool) dataset.IterDataset {
	return &threadIterDataset{parent: parent, opts: opts, allowSparse: allowSparse}
}

func (t *threadIterDataset) Parents() []dataset.Node { return []dataset.Node{t.parent} }

func (t *threadIterDataset) Iter() dataset.DatasetIterator {
	return &threadIterator{parent: t.parent, opts: t.opts, allowSparse: t.allowSparse}
}

// reshardParents pushes a worker-index/worker-count rewrite down to the
// map-kind parent, satisfying Reshard's descend-through-iter-kind-nodes
// rule (spec §4.A) for a pipeline like pack(thread(shard-target)).
func (t *threadIterDataset) reshardParents(workerIndex, workerCount int) dataset.IterDataset {
	return &threadIterDataset{
		parent:      dataset.Reshard(t.parent, workerIndex, workerCount).(dataset.MapDataset),
		opts:        t.opts,
		allowSparse: t.allowSparse,
	}
}

// future is an in-flight At(idx) call whose result will arrive on done.
type future struct {
	idx  int
	done chan futureResult
}

type futureResult struct {
	elem dataset.Element
	ok   bool
	err  error
}

type threadIterator struct {
	parent      dataset.MapDataset
	opts        ReadOptions
	allowSparse bool

	sem chan struct{} // bounds concurrent At() calls to opts.NumThreads

	queue []*future // FIFO window of in-flight futures, indices [nextEmit, nextFetch)

	nextEmit  int // next logical index Next() will pop
	nextFetch int // next raw index to spawn a future for

	filled bool
	closed bool
}

func (it *threadIterator) ensureSem() {
	if it.sem == nil {
		n := it.opts.NumThreads
		if n < 1 {
			n = 1
		}

		it.sem = make(chan struct{}, n)
	}
}

// spawn launches a goroutine computing parent.At(idx), gated by the
// semaphore so at most opts.NumThreads run concurrently.
func (it *threadIterator) spawn(ctx context.Context, idx int) *future {
	it.ensureSem()

	f := &future{idx: idx, done: make(chan futureResult, 1)}

	it.sem <- struct{}{}

	go func() {
		defer func() { <-it.sem }()

		elem, ok, err := it.parent.At(ctx, idx)
		f.done <- futureResult{elem: elem, ok: ok, err: err}
	}()

	return f
}

// atEnd reports whether idx is past the parent's declared epoch.
func (it *threadIterator) atEnd(idx int) bool {
	length := it.parent.Length()

	return length != dataset.Infinite && idx >= length
}

// fillWindow tops the in-flight queue up to the configured buffer size,
// starting from nextFetch.
func (it *threadIterator) fillWindow(ctx context.Context) {
	target := it.opts.PrefetchBufferSize
	if target < 1 {
		target = 1
	}

	for len(it.queue) < target && !it.atEnd(it.nextFetch) {
		it.queue = append(it.queue, it.spawn(ctx, it.nextFetch))
		it.nextFetch++
	}

	it.filled = true
}

func (it *threadIterator) Next(ctx context.Context) (dataset.Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	if it.opts.PrefetchBufferSize <= 0 {
		return it.nextSync(ctx)
	}

	if !it.filled {
		it.fillWindow(ctx)
	}

	for {
		if len(it.queue) > 0 && it.nextEmit != it.queue[0].idx {
			// Window was rebuilt after a SetState; the head future may
			// already be stale relative to nextEmit. Rebuild clean.
			it.queue = nil
			it.fillWindow(ctx)
		}

		if len(it.queue) == 0 {
			return nil, false, nil
		}

		head := it.queue[0]
		it.queue = it.queue[1:]
		it.nextEmit++

		res := <-head.done
		if res.err != nil {
			return nil, false, res.err
		}

		if !it.atEnd(it.nextFetch) {
			it.queue = append(it.queue, it.spawn(ctx, it.nextFetch))
			it.nextFetch++
		}

		if res.ok || it.allowSparse {
			return res.elem, true, nil
		}
		// Sparse and disallowed: skip transparently (spec §4.C), loop for
		// the next queued future.
		if len(it.queue) == 0 {
			it.fillWindow(ctx)

			if len(it.queue) == 0 {
				return nil, false, nil
			}
		}
	}
}

func (it *threadIterator) nextSync(ctx context.Context) (dataset.Element, bool, error) {
	for {
		if it.atEnd(it.nextEmit) {
			return nil, false, nil
		}

		elem, ok, err := it.parent.At(ctx, it.nextEmit)
		it.nextEmit++
		it.nextFetch = it.nextEmit

		if err != nil {
			return nil, false, err
		}

		if ok || it.allowSparse {
			return elem, true, nil
		}
	}
}

func (it *threadIterator) State() (dataset.State, error) {
	return dataset.State{"next_index": it.nextEmit}, nil
}

// SetState restores the emit cursor and discards the in-flight buffer;
// the prefetch window is rebuilt lazily on the next Next() (spec §4.C).
func (it *threadIterator) SetState(s dataset.State) error {
	next, _ := s["next_index"].(int)

	it.nextEmit = next
	it.nextFetch = next
	it.queue = nil
	it.filled = false

	return nil
}

func (it *threadIterator) Close() error {
	it.closed = true
	it.queue = nil

	return nil
}
