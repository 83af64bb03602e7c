package prefetch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/shmem"
	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

// processIterDataset is the process-prefetch node of spec §4.D: a pool of
// W worker goroutines, each driving its own sharded copy of the parent
// iter-dataset. The original system farms work out to OS subprocesses;
// SPEC_FULL.md §2 fixes the Go rendition as goroutines instead, since they
// already give the isolation the engine needs (an unhandled panic in one
// worker must not corrupt another's state) without the cost of real
// process boundaries.
type processIterDataset struct {
	parent dataset.IterDataset
	opts   MultiprocessingOptions
}

// Process wraps parent — an already host-sharded IterDataset, so
// process-prefetch can sit downstream of packing per §2's data flow — in
// a pool-prefetch iter-dataset with opts.NumWorkers worker goroutines,
// each applying a further per-worker reshard of parent (spec §4.D,
// "Worker factory" step 1).
func Process(parent dataset.IterDataset, opts MultiprocessingOptions) (dataset.IterDataset, error) {
	if opts.NumWorkers < 1 {
		return nil, ErrNumWorkers
	}

	if hasProcessPrefetchAncestor(parent) {
		return nil, ErrMultipleProcessPrefetch
	}

	return &processIterDataset{parent: parent, opts: opts}, nil
}

// hasProcessPrefetchAncestor walks node's parent DAG looking for an
// existing process-prefetch node (spec §4.D "Validation": at most one
// process-prefetch node may appear in a pipeline, enforced by walking the
// parent DAG at construction).
func hasProcessPrefetchAncestor(node dataset.Node) bool {
	if node == nil {
		return false
	}

	if _, ok := node.(*processIterDataset); ok {
		return true
	}

	for _, parent := range node.Parents() {
		if hasProcessPrefetchAncestor(parent) {
			return true
		}
	}

	return false
}

func (p *processIterDataset) Parents() []dataset.Node { return []dataset.Node{p.parent} }

func (p *processIterDataset) Iter() dataset.DatasetIterator {
	w := p.opts.NumWorkers

	it := &processIterator{
		parent:           p.parent,
		opts:             p.opts,
		workersState:     make([]dataset.State, w),
		iterationsToSkip: make([]int, w),
		exhausted:        make([]bool, w),
		lastWorkerIndex:  -1,
	}

	it.start()

	return it
}

func (p *processIterDataset) reshardParents(workerIndex, workerCount int) dataset.IterDataset {
	return &processIterDataset{
		parent: dataset.Reshard(p.parent, workerIndex, workerCount).(dataset.IterDataset),
		opts:   p.opts,
	}
}

// workerMsg is one worker's produced tuple (spec §4.D step 4): the
// shared-memory-encoded element, plus a snapshot state if at least
// RecordInterval has elapsed since the worker's last one. ok is false,
// with err nil, to signal that worker's shard is exhausted.
type workerMsg struct {
	elem  shmemElement
	ok    bool
	err   error
	state dataset.State
}

// shmemElement is an Element whose qualifying leaves have been routed
// through the shared-memory arena (spec §4.D step 3: "copy every dense
// numeric-array leaf whose dtype is plain and whose layout is contiguous
// into a shared-memory region, replacing the leaf with an opaque
// descriptor"). Non-qualifying leaves pass through by value.
type shmemElement map[string]shmemLeaf

type shmemLeaf struct {
	inline *value.Array
	desc   shmem.Descriptor
	shape  []int
	dtype  value.Dtype
}

func encodeElement(arena *shmem.Arena, e dataset.Element) shmemElement {
	out := make(shmemElement, len(e))

	for name, arr := range e {
		if d, err := shmem.PutArray(arena, arr); err == nil {
			out[name] = shmemLeaf{desc: d, shape: append([]int(nil), arr.Shape...), dtype: arr.Dtype}

			continue
		}

		cp := arr.Clone()
		out[name] = shmemLeaf{inline: &cp}
	}

	return out
}

func decodeElement(arena *shmem.Arena, e shmemElement) dataset.Element {
	out := make(dataset.Element, len(e))

	for name, leaf := range e {
		if leaf.inline != nil {
			out[name] = *leaf.inline

			continue
		}

		out[name] = shmem.GetArray(arena, leaf.desc, leaf.shape, leaf.dtype)
	}

	return out
}

type processIterator struct {
	parent dataset.IterDataset
	opts   MultiprocessingOptions

	arena *shmem.Arena

	cancel context.CancelFunc
	chans  []chan workerMsg

	// workersState, iterationsToSkip, and lastWorkerIndex together are
	// the State shape spec §4.D names: per-worker upstream snapshots, the
	// count of elements consumed since each was taken, and which worker
	// produced the most recently consumed element.
	workersState     []dataset.State
	iterationsToSkip []int
	lastWorkerIndex  int

	// exhausted[w] once set means worker w's shard ran out; recv never
	// blocks on that channel again.
	exhausted []bool

	// cursor is the worker index Next() reads from next; reset to
	// (lastWorkerIndex+1) mod W on every start (spec §4.D: "starting from
	// (last_checkpointed_worker + 1) mod W").
	cursor int

	closed bool
	fatal  error
}

func (it *processIterator) start() {
	ctx, cancel := context.WithCancel(context.Background())
	it.cancel = cancel

	w := it.opts.NumWorkers
	it.chans = make([]chan workerMsg, w)

	buf := it.opts.PerWorkerBufferSize
	if buf < 1 {
		buf = 1
	}

	if it.arena == nil {
		arena, err := shmem.NewArena(os.TempDir(), 1024)
		if err != nil {
			it.fatal = fmt.Errorf("prefetch: open shared-memory arena: %w", err)

			return
		}

		it.arena = arena
	}

	for i := range w {
		ch := make(chan workerMsg, buf)
		it.chans[i] = ch

		go it.runWorker(ctx, ch, i, w, it.workersState[i].Clone(), it.iterationsToSkip[i])
	}

	it.cursor = (it.lastWorkerIndex + 1 + w) % w
}

// runWorker is the worker factory of spec §4.D: reshard the parent to this
// worker's residue class, restore and replay-skip if resuming, then stream
// elements, encoding contiguous numeric leaves through the shared arena
// and attaching a state snapshot whenever RecordInterval has elapsed. ch
// is captured once at spawn time (rather than read back off it.chans on
// every send) so a worker from a prior start() can never send onto the
// channel a later SetState/start() installed for the same index.
func (it *processIterator) runWorker(ctx context.Context, ch chan workerMsg, workerIndex, workerCount int, restoreState dataset.State, skip int) {
	defer func() {
		if r := recover(); r != nil {
			it.send(ctx, ch, workerMsg{err: fmt.Errorf("%w: %v", ErrWorkerLost, r)})
		}
	}()

	sharded, ok := dataset.Reshard(it.parent, workerIndex, workerCount).(dataset.IterDataset)
	if !ok {
		it.send(ctx, ch, workerMsg{err: fmt.Errorf("%w: resharded parent is not an iter-dataset", ErrWorkerLost)})

		return
	}

	cursor := sharded.Iter()
	defer cursor.Close()

	if restoreState != nil {
		if err := cursor.SetState(restoreState); err != nil {
			it.send(ctx, ch, workerMsg{err: fmt.Errorf("%w: restore worker %d: %w", ErrWorkerLost, workerIndex, err)})

			return
		}

		for range skip {
			if _, _, err := cursor.Next(ctx); err != nil {
				it.send(ctx, ch, workerMsg{err: fmt.Errorf("%w: replay-skip worker %d: %w", ErrWorkerLost, workerIndex, err)})

				return
			}
		}
	}

	lastSnapshot := time.Now()

	for {
		elem, ok, err := cursor.Next(ctx)
		if err != nil {
			it.send(ctx, ch, workerMsg{err: err})

			return
		}

		if !ok {
			it.send(ctx, ch, workerMsg{ok: false})

			return
		}

		var snap dataset.State

		if time.Since(lastSnapshot) >= it.opts.RecordInterval {
			if s, serr := cursor.State(); serr == nil {
				snap = s
				lastSnapshot = time.Now()
			}
		}

		it.send(ctx, ch, workerMsg{elem: encodeElement(it.arena, elem), ok: true, state: snap})
	}
}

func (it *processIterator) send(ctx context.Context, ch chan workerMsg, msg workerMsg) {
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

func (it *processIterator) Next(ctx context.Context) (dataset.Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	if it.fatal != nil {
		return nil, false, it.fatal
	}

	w := it.opts.NumWorkers

	for checked := 0; checked < w; checked++ {
		worker := it.cursor
		it.cursor = (it.cursor + 1) % w

		msg, alive := it.recv(ctx, worker)
		if !alive {
			continue
		}

		if msg.err != nil {
			it.fatal = msg.err

			return nil, false, msg.err
		}

		it.lastWorkerIndex = worker

		if msg.state != nil {
			it.workersState[worker] = msg.state
			it.iterationsToSkip[worker] = 0
		} else {
			it.iterationsToSkip[worker]++
		}

		return decodeElement(it.arena, msg.elem), true, nil
	}

	return nil, false, nil
}

// recv blocks for worker w's next message, or reports !alive once that
// worker's shard has been exhausted (or ctx is done).
func (it *processIterator) recv(ctx context.Context, w int) (workerMsg, bool) {
	if it.exhausted[w] {
		return workerMsg{}, false
	}

	select {
	case msg := <-it.chans[w]:
		if !msg.ok && msg.err == nil {
			it.exhausted[w] = true

			return workerMsg{}, false
		}

		return msg, true
	case <-ctx.Done():
		return workerMsg{}, false
	}
}

func (it *processIterator) State() (dataset.State, error) {
	states := make([]dataset.State, len(it.workersState))
	for i, s := range it.workersState {
		states[i] = s.Clone()
	}

	skip := make([]int, len(it.iterationsToSkip))
	copy(skip, it.iterationsToSkip)

	return dataset.State{
		"workers_state":      states,
		"iterations_to_skip": skip,
		"last_worker_index":  it.lastWorkerIndex,
	}, nil
}

// SetState restarts the worker pool from the checkpointed per-worker
// states (spec §4.D step 2: restore, then advance past
// iterations_to_skip), resuming round-robin from (last_worker_index+1)
// mod W.
func (it *processIterator) SetState(s dataset.State) error {
	if it.cancel != nil {
		it.cancel()
	}

	w := it.opts.NumWorkers

	if states, ok := s["workers_state"].([]dataset.State); ok && len(states) == w {
		for i, st := range states {
			it.workersState[i] = st.Clone()
		}
	}

	if skip, ok := s["iterations_to_skip"].([]int); ok && len(skip) == w {
		copy(it.iterationsToSkip, skip)
	}

	if last, ok := s["last_worker_index"].(int); ok {
		it.lastWorkerIndex = last
	}

	it.exhausted = make([]bool, w)
	it.fatal = nil

	it.start()

	return nil
}

func (it *processIterator) Close() error {
	if it.cancel != nil {
		it.cancel()
	}

	it.closed = true

	if it.arena != nil {
		return it.arena.Close()
	}

	return nil
}
