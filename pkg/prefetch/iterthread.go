package prefetch

import (
	"context"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// iterThreadDataset is the single-producer-thread prefetch variant of
// spec §4.C: parent is already an IterDataset (sequential by nature), so
// a single background goroutine reads ahead into a bounded buffer rather
// than the thread-pool fan-out Thread uses over a MapDataset parent.
type iterThreadDataset struct {
	parent dataset.IterDataset
	buffer int
}

// IterThread wraps an IterDataset parent with single-goroutine read-ahead
// of depth buffer. buffer <= 0 degenerates to calling parent directly with
// no background goroutine.
func IterThread(parent dataset.IterDataset, buffer int) dataset.IterDataset {
	return &iterThreadDataset{parent: parent, buffer: buffer}
}

func (d *iterThreadDataset) Parents() []dataset.Node { return []dataset.Node{d.parent} }

func (d *iterThreadDataset) Iter() dataset.DatasetIterator {
	cursor := d.parent.Iter()

	it := &iterThreadIterator{cursor: cursor, buffer: d.buffer}

	// Capture the pristine pre-read state (the "initial sentinel" of spec
	// §4.C) synchronously, before the producer goroutine ever calls
	// Next, so State() called before any consumer Next() reflects a
	// position where nothing has been consumed from upstream (S6).
	if init, err := cursor.State(); err == nil {
		it.lastState = init
	}

	if d.buffer > 0 {
		it.start()
	}

	return it
}

func (d *iterThreadDataset) reshardParents(workerIndex, workerCount int) dataset.IterDataset {
	return &iterThreadDataset{
		parent: dataset.Reshard(d.parent, workerIndex, workerCount).(dataset.IterDataset),
		buffer: d.buffer,
	}
}

// iterThreadMsg bundles a produced element with the upstream cursor state
// captured immediately after it was read, so a consumer that has just
// emitted this element can checkpoint a state that resumes exactly after
// it (not ahead of it, despite read-ahead having already happened).
type iterThreadMsg struct {
	elem  dataset.Element
	ok    bool
	err   error
	state dataset.State
}

type iterThreadIterator struct {
	cursor dataset.DatasetIterator
	buffer int

	ch     chan iterThreadMsg
	cancel context.CancelFunc

	// lastState is the upstream state as of the last element actually
	// handed to the consumer (or the pristine initial state, before any
	// Next()). This, not the producer's read-ahead position, is what
	// State() reports.
	lastState dataset.State

	closed bool
}

func (it *iterThreadIterator) start() {
	ctx, cancel := context.WithCancel(context.Background())
	it.cancel = cancel
	it.ch = make(chan iterThreadMsg, it.buffer)

	go func() {
		for {
			elem, ok, err := it.cursor.Next(ctx)

			var snap dataset.State
			if s, serr := it.cursor.State(); serr == nil {
				snap = s
			}

			msg := iterThreadMsg{elem: elem, ok: ok, err: err, state: snap}

			select {
			case it.ch <- msg:
			case <-ctx.Done():
				return
			}

			if err != nil || !ok {
				return
			}
		}
	}()
}

func (it *iterThreadIterator) Next(ctx context.Context) (dataset.Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	if it.buffer <= 0 {
		elem, ok, err := it.cursor.Next(ctx)
		if err == nil {
			if s, serr := it.cursor.State(); serr == nil {
				it.lastState = s
			}
		}

		return elem, ok, err
	}

	select {
	case msg := <-it.ch:
		if msg.err == nil && msg.ok {
			it.lastState = msg.state
		}

		return msg.elem, msg.ok, msg.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (it *iterThreadIterator) State() (dataset.State, error) {
	return it.lastState.Clone(), nil
}

// SetState restores the upstream cursor and restarts the background
// producer (if buffered), discarding any in-flight read-ahead (spec §4.C:
// restoring discards the buffer).
func (it *iterThreadIterator) SetState(s dataset.State) error {
	if it.cancel != nil {
		it.cancel()
	}

	if err := it.cursor.SetState(s); err != nil {
		return err
	}

	it.lastState = s.Clone()

	if it.buffer > 0 {
		it.start()
	}

	return nil
}

func (it *iterThreadIterator) Close() error {
	if it.cancel != nil {
		it.cancel()
	}

	it.closed = true

	return it.cursor.Close()
}
