package packing

import (
	"fmt"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

// LengthStruct maps feature name to target length T_f (spec §4.E). The
// degenerate scalar case ("a scalar T applied to a single unnamed
// feature") is represented as a one-entry LengthStruct keyed by that
// feature's own name; packers never special-case arity.
type LengthStruct map[string]int

// featureSlot is one feature's fixed-capacity storage inside a bin.
type featureSlot struct {
	target    int // T_f
	inner     int // product of dimensions after the outer one
	shapeTail []int
	dtype     value.Dtype
	data      []float64 // len == used*inner; toArrays pads to target*inner
	segments  []float64 // len == used; toArrays pads to target
	positions []float64 // len == used; toArrays pads to target
	used      int        // outer-dimension slots filled so far
}

func newFeatureSlot(target int) *featureSlot {
	return &featureSlot{
		target:    target,
		inner:     1,
		data:      make([]float64, 0, target),
		segments:  make([]float64, 0, target),
		positions: make([]float64, 0, target),
	}
}

// fits reports whether arr's full length would fit in the slot's
// remaining capacity without truncation.
func (s *featureSlot) fits(arr value.Array) bool {
	return s.used+arr.Len() <= s.target
}

// add copies min(remaining capacity, arr.Len()) outer-dimension rows from
// arr into the slot, tagging every copied row with segmentID, and returns
// how many rows were actually copied (spec §4.E.1 rule 5: independent
// per-feature truncation; an element contributing zero rows to a feature
// gets no segment id in that feature).
func (s *featureSlot) add(arr value.Array, segmentID int) int {
	remaining := s.target - s.used
	take := arr.Len()

	if take > remaining {
		take = remaining
	}

	if take <= 0 {
		return 0
	}

	if s.used == 0 {
		s.inner = arr.InnerSize()
		s.shapeTail = append([]int(nil), arr.Shape[1:]...)
		s.dtype = arr.Dtype

		if cap(s.data) < s.target*s.inner {
			s.data = make([]float64, 0, s.target*s.inner)
		}
	}

	chunk := arr.Slice(0, take)
	s.data = append(s.data, chunk.Data...)

	for i := range take {
		s.segments = append(s.segments, float64(segmentID))
		s.positions = append(s.positions, float64(i))
	}

	s.used += take

	return take
}

// toArrays pads the slot to its full target length and returns the
// packed value array plus its segment-id and position arrays.
func (s *featureSlot) toArrays() (packed, segments, positions value.Array) {
	shape := append([]int{s.target}, s.shapeTail...)

	data := make([]float64, s.target*s.inner)
	copy(data, s.data)

	segs := make([]float64, s.target)
	copy(segs, s.segments)

	pos := make([]float64, s.target)
	copy(pos, s.positions)

	return value.Array{Shape: shape, Dtype: s.dtype, Data: data},
		value.Array{Shape: []int{s.target}, Dtype: value.Int64, Data: segs},
		value.Array{Shape: []int{s.target}, Dtype: value.Int64, Data: pos}
}

// reset clears the slot back to empty, keeping its backing storage.
func (s *featureSlot) reset() {
	s.data = s.data[:0]
	s.segments = s.segments[:0]
	s.positions = s.positions[:0]
	s.used = 0
}

// fillsExactly reports whether e alone fills every feature in lengths to
// exactly its target length (spec §4.E.1 rule 1: such an element jumps
// straight to output, ahead of anything already buffered).
func fillsExactly(e dataset.Element, lengths LengthStruct) bool {
	for name, target := range lengths {
		arr, ok := e[name]
		if !ok || arr.Len() != target {
			return false
		}
	}

	return true
}

// soloRecord packs e into a single fresh bin and immediately renders it,
// used both for the single-bin packer's fast path and for the "one
// already-full element" case shared with first-fit construction.
func soloRecord(e dataset.Element, lengths LengthStruct) dataset.Element {
	b := newBin(lengths)
	b.add(e)

	return b.toRecord()
}

// bin holds one in-progress packed record, one slot per declared feature.
type bin struct {
	lengths     LengthStruct
	slots       map[string]*featureSlot
	nextSegment int
}

func newBin(lengths LengthStruct) *bin {
	slots := make(map[string]*featureSlot, len(lengths))
	for name, target := range lengths {
		slots[name] = newFeatureSlot(target)
	}

	return &bin{lengths: lengths, slots: slots, nextSegment: 1}
}

// validate checks e declares exactly the features lengths names (spec
// §4.E.3).
func (b *bin) validate(e dataset.Element) error {
	if len(e) != len(b.lengths) {
		return fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(e), len(b.lengths))
	}

	for name := range b.lengths {
		if _, ok := e[name]; !ok {
			return fmt.Errorf("%w: missing feature %q", ErrFeatureMismatch, name)
		}
	}

	return nil
}

// fits reports whether e can be appended to every one of its features
// without truncating any of them (the control-flow fit test of spec
// §4.E.1/4.E.2, as distinct from the always-truncation-safe add below).
func (b *bin) fits(e dataset.Element) bool {
	for name, arr := range e {
		if !b.slots[name].fits(arr) {
			return false
		}
	}

	return true
}

// isEmpty reports whether no feature has any data yet.
func (b *bin) isEmpty() bool {
	for _, s := range b.slots {
		if s.used > 0 {
			return false
		}
	}

	return true
}

// add places e into the bin under a fresh segment id, truncating any
// feature whose remaining capacity is smaller than e's contribution
// (spec §4.E.1 rule 5). Returns the segment id assigned.
func (b *bin) add(e dataset.Element) int {
	segID := b.nextSegment
	b.nextSegment++

	for name, arr := range e {
		b.slots[name].add(arr, segID)
	}

	return segID
}

// toRecord renders the bin's current contents as a tail-padded output
// element: for every feature f, keys f, f+"_segment_ids", f+"_positions".
func (b *bin) toRecord() dataset.Element {
	out := make(dataset.Element, len(b.slots)*3)

	for name, slot := range b.slots {
		packed, segs, pos := slot.toArrays()
		out[name] = packed
		out[name+"_segment_ids"] = segs
		out[name+"_positions"] = pos
	}

	return out
}

// reset empties the bin for reuse, starting segment ids over at 1.
func (b *bin) reset() {
	for _, s := range b.slots {
		s.reset()
	}

	b.nextSegment = 1
}

// restoreBinFromRecord re-populates b directly from a previously rendered
// (tail-padded) record, trusting its segment ids and positions rather
// than recomputing them, since the original unpadded elements are no
// longer available once truncated and merged into a bin.
func restoreBinFromRecord(b *bin, rec dataset.Element) {
	maxSeg := 0

	for name, slot := range b.slots {
		packedArr := rec[name]
		segs := rec[name+"_segment_ids"]

		used := 0
		for _, v := range segs.Data {
			if v != 0 {
				used++
			}

			if int(v) > maxSeg {
				maxSeg = int(v)
			}
		}

		inner := packedArr.InnerSize()

		slot.used = used
		slot.inner = inner
		slot.data = append(slot.data[:0], packedArr.Data[:used*inner]...)
		slot.segments = append(slot.segments[:0], segs.Data[:used]...)
		slot.positions = append(slot.positions[:0], rec[name+"_positions"].Data[:used]...)

		if used > 0 {
			slot.dtype = packedArr.Dtype
			slot.shapeTail = append([]int(nil), packedArr.Shape[1:]...)
		}
	}

	b.nextSegment = maxSeg + 1
}
