package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// init wires the map-kind transform constructors into the plug-point
// registry (spec §4.A, §9: "build the registry at module-init and
// freeze it"), so "filter", "shuffle", and "repeat" are discoverable by
// name instead of only through their direct Go constructors.
func init() {
	RegisterMapTransform("filter", buildFilterTransform)
	RegisterMapTransform("shuffle", buildShuffleTransform)
	RegisterMapTransform("repeat", buildRepeatTransform)
}

func buildFilterTransform(parent MapDataset, args State) (MapDataset, error) {
	keep, ok := args["predicate"].(FilterTransform)
	if !ok {
		return nil, fmt.Errorf("%w: filter requires a \"predicate\" FilterTransform", ErrInvalidTransformArgs)
	}

	return NewFilter(parent, keep), nil
}

func buildShuffleTransform(parent MapDataset, args State) (MapDataset, error) {
	seed, ok := args["seed"].(uint64)
	if !ok {
		return nil, fmt.Errorf("%w: shuffle requires a \"seed\" uint64", ErrInvalidTransformArgs)
	}

	return NewShuffle(parent, seed), nil
}

func buildRepeatTransform(parent MapDataset, args State) (MapDataset, error) {
	count, ok := args["count"].(int)
	if !ok {
		return nil, fmt.Errorf("%w: repeat requires a \"count\" int", ErrInvalidTransformArgs)
	}

	return NewRepeat(parent, count), nil
}

// FilterTransform is the user-supplied predicate plug point (spec §6):
// element -> boolean. Elements for which it returns false become the
// sparse sentinel.
type FilterTransform func(ctx context.Context, e Element) (bool, error)

// filterDataset applies a FilterTransform over a MapDataset parent,
// producing the sparse sentinel (ok=false) for rejected elements per spec
// §3's "elements may be absent; absence is first-class."
type filterDataset struct {
	parent MapDataset
	keep   FilterTransform
}

// NewFilter wraps parent, replacing elements keep rejects with the sparse
// sentinel.
func NewFilter(parent MapDataset, keep FilterTransform) MapDataset {
	return &filterDataset{parent: parent, keep: keep}
}

func (f *filterDataset) Parents() []Node { return []Node{f.parent} }
func (f *filterDataset) Length() int     { return f.parent.Length() }

func (f *filterDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	e, ok, err := f.parent.At(ctx, i)
	if err != nil || !ok {
		return nil, false, err
	}

	keep, err := f.keep(ctx, e)
	if err != nil {
		return nil, false, err
	}

	if !keep {
		return nil, false, nil
	}

	return e, true, nil
}

func (f *filterDataset) Slice(start, stop, step int) MapDataset {
	return NewSliced(f, start, stop, step)
}

func (f *filterDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	return &filterDataset{parent: reshardMap(f.parent, workerIndex, workerCount), keep: f.keep}
}

// MapTransform is the user-supplied element-rewriting plug point (spec
// §6): element -> element.
type MapTransform func(ctx context.Context, e Element) (Element, error)

// mapDataset applies a MapTransform over every present element of parent.
type mapDataset struct {
	parent MapDataset
	fn     MapTransform
}

// NewMap wraps parent, applying fn to every non-sparse element.
func NewMap(parent MapDataset, fn MapTransform) MapDataset {
	return &mapDataset{parent: parent, fn: fn}
}

func (m *mapDataset) Parents() []Node { return []Node{m.parent} }
func (m *mapDataset) Length() int     { return m.parent.Length() }

func (m *mapDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	e, ok, err := m.parent.At(ctx, i)
	if err != nil || !ok {
		return nil, false, err
	}

	out, err := m.fn(ctx, e)
	if err != nil {
		return nil, false, err
	}

	return out, true, nil
}

func (m *mapDataset) Slice(start, stop, step int) MapDataset {
	return NewSliced(m, start, stop, step)
}

func (m *mapDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	return &mapDataset{parent: reshardMap(m.parent, workerIndex, workerCount), fn: m.fn}
}

// repeatDataset repeats parent count times, or forever when count <= 0
// (spec §4.A: "length of a repeated dataset with an infinite repeat-count
// is the sentinel infinite").
type repeatDataset struct {
	parent MapDataset
	count  int
}

// NewRepeat wraps parent so it repeats count epochs; count <= 0 means
// repeat forever.
func NewRepeat(parent MapDataset, count int) MapDataset {
	return &repeatDataset{parent: parent, count: count}
}

func (r *repeatDataset) Parents() []Node { return []Node{r.parent} }

func (r *repeatDataset) Length() int {
	parentLen := r.parent.Length()
	if r.count <= 0 || parentLen == Infinite {
		return Infinite
	}

	return parentLen * r.count
}

func (r *repeatDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	parentLen := r.parent.Length()
	if parentLen == Infinite {
		return r.parent.At(ctx, i)
	}

	if parentLen <= 0 {
		return nil, false, nil
	}

	return r.parent.At(ctx, i%parentLen)
}

func (r *repeatDataset) Slice(start, stop, step int) MapDataset {
	return NewSliced(r, start, stop, step)
}

func (r *repeatDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	return &repeatDataset{parent: reshardMap(r.parent, workerIndex, workerCount), count: r.count}
}

// shuffleDataset applies a deterministic seeded permutation to parent's
// indices, re-derived per epoch so successive epochs see different
// orderings (spec §3: "shuffle produces a different permutation per
// epoch").
type shuffleDataset struct {
	parent MapDataset
	seed   uint64
}

// NewShuffle wraps a finite parent with a seeded per-epoch shuffle.
func NewShuffle(parent MapDataset, seed uint64) MapDataset {
	return &shuffleDataset{parent: parent, seed: seed}
}

func (s *shuffleDataset) Parents() []Node { return []Node{s.parent} }
func (s *shuffleDataset) Length() int     { return s.parent.Length() }

func (s *shuffleDataset) At(ctx context.Context, i int) (Element, bool, error) {
	if i < 0 {
		return nil, false, ErrNegativeIndex
	}

	length := s.parent.Length()
	if length <= 0 {
		return nil, false, nil
	}

	epoch := i / length
	pos := i % length

	perm := epochPermutation(s.seed, epoch, length)

	return s.parent.At(ctx, epoch*length+perm[pos])
}

func (s *shuffleDataset) Slice(start, stop, step int) MapDataset {
	return NewSliced(s, start, stop, step)
}

func (s *shuffleDataset) reshardParent(workerIndex, workerCount int) MapDataset {
	return &shuffleDataset{parent: reshardMap(s.parent, workerIndex, workerCount), seed: s.seed}
}

// epochPermutation deterministically derives a Fisher-Yates permutation of
// [0, length) for the given seed and epoch. The same (seed, epoch, length)
// triple always yields the same permutation (P1: determinism), and for
// any seed the result is a bijection on [0, length) (P5: shuffle is a
// permutation).
func epochPermutation(seed uint64, epoch, length int) []int {
	perm := make([]int, length)
	for i := range perm {
		perm[i] = i
	}

	rng := rand.New(rand.NewPCG(seed, uint64(epoch))) //nolint:gosec // deterministic shuffle, not a security primitive

	rng.Shuffle(length, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	return perm
}
