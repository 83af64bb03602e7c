package dataset

import (
	"context"

	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

// RangeElementFunc resolves a raw integer in a Range's arithmetic
// progression to an element. Concrete sources (file readers, in-memory
// sources) are out of this engine's scope (spec §1); RangeElementFunc is
// the seam a caller plugs a real source into.
type RangeElementFunc func(ctx context.Context, raw int) (Element, bool, error)

// Range is the random-access primitive of spec §4.B: an arithmetic
// progression (start, stop, step) of indices into an element function.
type Range struct {
	start, stop, step int
	elem              RangeElementFunc
}

// NewRange builds a Range source. elem resolves a raw progression value
// (start + i*step, pre-wrap) to an element; pass nil to get a Range whose
// elements are the raw integers themselves, boxed under feature "value".
func NewRange(start, stop, step int, elem RangeElementFunc) *Range {
	if elem == nil {
		elem = identityElement
	}

	return &Range{start: start, stop: stop, step: step, elem: elem}
}

func identityElement(_ context.Context, raw int) (Element, bool, error) {
	return Element{"value": value.NewArray1D(value.Int64, []float64{float64(raw)})}, true, nil
}

// Parents implements Node; a Range is always a source.
func (r *Range) Parents() []Node { return nil }

// Length implements MapDataset: ceil((stop-start)/step).
func (r *Range) Length() int {
	if r.step == 0 {
		return Infinite
	}

	span := r.stop - r.start
	if span <= 0 {
		return 0
	}

	return (span + r.step - 1) / r.step
}

// At implements MapDataset: at(i) = start + (i mod length) * step.
func (r *Range) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	length := r.Length()
	if length == 0 {
		return nil, false, nil
	}

	wrapped := i
	if length != Infinite {
		wrapped = i % length
	}

	raw := r.start + wrapped*r.step

	return r.elem(ctx, raw)
}

// Slice implements MapDataset by wrapping r in a sliced view over the
// requested progression.
func (r *Range) Slice(start, stop, step int) MapDataset {
	return &slicedMapDataset{parent: r, start: start, stop: stop, step: step}
}

// ToIter is the "RangeMapDataset.ToIterDataset convenience" from
// original_source/grain (lines 944-956), supplemented into this engine by
// SPEC_FULL.md §12: a synchronous (zero-buffer) iter-dataset view of a
// plain range, distinct from the general prefetch.Thread wrapper which
// takes explicit ReadOptions.
func (r *Range) ToIter() IterDataset {
	return NewSyncIter(r)
}
