package dataset

import (
	"context"
	"fmt"
)

// slicedMapDataset is the generic `slice(start,stop,step)` transform node
// (spec §4.A): a fresh composed progression over parent's indices, used
// both for user-facing slicing and for the per-worker sharding overlay
// Reshard builds.
type slicedMapDataset struct {
	parent            MapDataset
	start, stop, step int
}

// NewSliced wraps parent in a slice(start,stop,step) view.
func NewSliced(parent MapDataset, start, stop, step int) MapDataset {
	return &slicedMapDataset{parent: parent, start: start, stop: stop, step: step}
}

// init registers "slice" in the plug-point registry alongside the other
// map-kind transforms (transform.go's init).
func init() {
	RegisterMapTransform("slice", buildSliceTransform)
}

func buildSliceTransform(parent MapDataset, args State) (MapDataset, error) {
	start, okStart := args["start"].(int)
	stop, okStop := args["stop"].(int)
	step, okStep := args["step"].(int)

	if !okStart || !okStop || !okStep {
		return nil, fmt.Errorf("%w: slice requires \"start\", \"stop\", \"step\" ints", ErrInvalidTransformArgs)
	}

	return NewSliced(parent, start, stop, step), nil
}

func (s *slicedMapDataset) Parents() []Node { return []Node{s.parent} }

func (s *slicedMapDataset) Length() int {
	if s.step == 0 {
		return 0
	}

	stop := s.stop

	if stop < 0 || stop == Infinite {
		parentLen := s.parent.Length()
		if parentLen == Infinite {
			return Infinite
		}

		stop = parentLen
	}

	span := stop - s.start
	if span <= 0 {
		return 0
	}

	return (span + s.step - 1) / s.step
}

func (s *slicedMapDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	return s.parent.At(ctx, s.start+i*s.step)
}

func (s *slicedMapDataset) Slice(start, stop, step int) MapDataset {
	// Compose progressions directly against the underlying parent rather
	// than nesting slicedMapDataset wrappers, keeping Reshard's rewrite
	// (below) a single level deep at every map-kind leaf.
	composedStop := s.stop
	if stop >= 0 {
		candidate := s.start + stop*s.step
		if composedStop < 0 || candidate < composedStop {
			composedStop = candidate
		}
	}

	return &slicedMapDataset{
		parent: s.parent,
		start:  s.start + start*s.step,
		stop:   composedStop,
		step:   s.step * step,
	}
}

// Reshard implements the recursive parent-slice rewrite of spec §4.A: it
// walks node, descending through iter-kind parents unchanged, and
// replaces every map-kind leaf with leaf.Slice(workerIndex, Infinite,
// workerCount). Per the design note in spec §9, the rewrite builds a
// fresh tree rather than mutating the original DAG: the original remains
// valid and shared by any other consumer.
func Reshard(node Node, workerIndex, workerCount int) Node {
	switch n := node.(type) {
	case MapDataset:
		return reshardMap(n, workerIndex, workerCount)
	case IterDataset:
		return reshardIter(n, workerIndex, workerCount)
	default:
		return node
	}
}

func reshardMap(m MapDataset, workerIndex, workerCount int) MapDataset {
	if len(m.Parents()) == 0 {
		return m.Slice(workerIndex, Infinite, workerCount)
	}

	return reshardedLeafRewriter{inner: m, workerIndex: workerIndex, workerCount: workerCount}.rewrite()
}

func reshardIter(it IterDataset, workerIndex, workerCount int) IterDataset {
	rewriter, ok := it.(reshardableIter)
	if !ok {
		// No rewrite hook: shallow-copy semantics degrade to identity,
		// matching spec §9's "iter-kind nodes are shallow-copied."
		return it
	}

	return rewriter.reshardParents(workerIndex, workerCount)
}

// reshardableIter is implemented by iter-kind transform nodes whose
// parents must themselves be resharded (the rewrite descends through
// iter-kind parents per spec §4.A). Map-to-iter conversion nodes (e.g.
// syncIterDataset) implement this to rewrite their single map-kind
// parent directly.
type reshardableIter interface {
	reshardParents(workerIndex, workerCount int) IterDataset
}

// reshardedLeafRewriter rewrites a map-kind transform node whose parent is
// itself a MapDataset. Non-leaf map transforms (filter, shuffle, repeat,
// sliced, map) all satisfy this by delegating to their single
// MapDataset parent; source leaves are handled directly in reshardMap.
type reshardedLeafRewriter struct {
	inner       MapDataset
	workerIndex int
	workerCount int
}

func (r reshardedLeafRewriter) rewrite() MapDataset {
	rw, ok := r.inner.(reshardableMap)
	if !ok {
		// Unknown map transform shape: fall back to wrapping the whole
		// subtree in a slice, which is still correct (every index i this
		// worker owns is i*workerCount+workerIndex into the subtree) even
		// though it does not push the rewrite down to the leaf.
		return r.inner.Slice(r.workerIndex, Infinite, r.workerCount)
	}

	return rw.reshardParent(r.workerIndex, r.workerCount)
}

// reshardableMap is implemented by map-to-map transform nodes that know
// how to rebuild themselves over a resharded parent.
type reshardableMap interface {
	reshardParent(workerIndex, workerCount int) MapDataset
}

func (s *slicedMapDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	rewritten := reshardMap(s.parent, workerIndex, workerCount)

	return &slicedMapDataset{parent: rewritten, start: s.start, stop: s.stop, step: s.step}
}
