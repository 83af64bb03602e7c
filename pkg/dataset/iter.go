package dataset

import "context"

// syncIterDataset is the degenerate zero-buffer iter-dataset view of a
// MapDataset (spec §12 / original_source lines 944-956): Next simply calls
// At(cursor) and advances, with no background worker. pkg/prefetch builds
// richer (buffered) iter-datasets over the same parent interface.
type syncIterDataset struct {
	parent      MapDataset
	allowSparse bool
}

// NewSyncIter wraps parent in a synchronous iter-dataset: reads are made
// directly on the caller's goroutine, skipping sparse elements unless
// allowSparse is set.
func NewSyncIter(parent MapDataset) IterDataset {
	return &syncIterDataset{parent: parent}
}

// NewSyncIterSparse is NewSyncIter with allow_sparse=true (spec §4.C, P4).
func NewSyncIterSparse(parent MapDataset) IterDataset {
	return &syncIterDataset{parent: parent, allowSparse: true}
}

func (s *syncIterDataset) Parents() []Node { return []Node{s.parent} }

func (s *syncIterDataset) Iter() DatasetIterator {
	return &syncIterator{parent: s.parent, allowSparse: s.allowSparse}
}

func (s *syncIterDataset) reshardParents(workerIndex, workerCount int) IterDataset {
	return &syncIterDataset{
		parent:      reshardMap(s.parent, workerIndex, workerCount),
		allowSparse: s.allowSparse,
	}
}

type syncIterator struct {
	parent      MapDataset
	allowSparse bool
	next        int
	closed      bool
}

func (it *syncIterator) Next(ctx context.Context) (Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	length := it.parent.Length()

	for {
		if length != Infinite && it.next >= length {
			return nil, false, nil
		}

		e, ok, err := it.parent.At(ctx, it.next)
		it.next++

		if err != nil {
			return nil, false, err
		}

		if ok || it.allowSparse {
			return e, true, nil
		}
		// Sparse and not allowed: skip transparently (spec §4.C, P4).
	}
}

func (it *syncIterator) State() (State, error) {
	return State{"next_index": it.next}, nil
}

func (it *syncIterator) SetState(s State) error {
	next, _ := s["next_index"].(int)
	it.next = next

	return nil
}

func (it *syncIterator) Close() error {
	it.closed = true

	return nil
}
