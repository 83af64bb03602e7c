// Package value implements the recursive element sum type the dataset engine
// treats as opaque almost everywhere: a flat record of named dense numeric
// arrays. Packing (pkg/packing) and shared-memory transport (pkg/shmem) are
// the only collaborators that look inside an Array's leaves.
package value

import (
	"errors"
	"fmt"
)

// Dtype names the original scalar type of an Array's values. The engine
// only ever materializes float64 storage, and the shared-memory arena
// (pkg/shmem) stores float64 values too; Dtype travels beside the data
// (in packed records and next to each shared-memory Descriptor) so the
// original element type can still be reported.
type Dtype string

const (
	// Float32 indicates 4-byte float elements.
	Float32 Dtype = "float32"
	// Float64 indicates 8-byte float elements.
	Float64 Dtype = "float64"
	// Int32 indicates 4-byte integer elements.
	Int32 Dtype = "int32"
	// Int64 indicates 8-byte integer elements.
	Int64 Dtype = "int64"
)

// Array is a dense rectangular numeric leaf. Shape lists the extent of
// each dimension in row-major order; Data is the flattened backing store
// with len(Data) == product(Shape). A one-dimensional Array with Shape
// [n] is the common case: a single packable feature sequence.
type Array struct {
	Shape []int
	Dtype Dtype
	Data  []float64
}

// NewArray1D builds a one-dimensional Array of the given dtype from data.
func NewArray1D(dtype Dtype, data []float64) Array {
	return Array{Shape: []int{len(data)}, Dtype: dtype, Data: append([]float64(nil), data...)}
}

// Len returns the size of the outermost (packable) dimension, or 0 for a
// zero-rank array.
func (a Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}

	return a.Shape[0]
}

// InnerSize returns the product of every dimension after the first, i.e.
// the number of scalars that make up one outer-dimension step. For a
// one-dimensional array this is 1.
func (a Array) InnerSize() int {
	size := 1
	for _, dim := range a.Shape[1:] {
		size *= dim
	}

	return size
}

// Slice returns the outer-dimension range [start, stop) of a, preserving
// every inner dimension verbatim. Two-dimensional feature leaves (shape
// [len, inner]) are packed along the outer dimension only; this is what
// lets pkg/packing reuse Slice unchanged for both ranks.
func (a Array) Slice(start, stop int) Array {
	inner := a.InnerSize()
	shape := append([]int(nil), a.Shape...)
	shape[0] = stop - start

	return Array{
		Shape: shape,
		Dtype: a.Dtype,
		Data:  append([]float64(nil), a.Data[start*inner:stop*inner]...),
	}
}

// Contiguous reports whether a's backing store holds exactly as many
// values as its declared shape covers — the qualifying condition pkg/shmem
// uses to decide whether a leaf may be copied into a shared-memory arena.
func (a Array) Contiguous() bool {
	size := 1
	for _, dim := range a.Shape {
		size *= dim
	}

	return len(a.Data) == size
}

// Clone returns a deep copy of a.
func (a Array) Clone() Array {
	return Array{
		Shape: append([]int(nil), a.Shape...),
		Dtype: a.Dtype,
		Data:  append([]float64(nil), a.Data...),
	}
}

// Record is the engine's fixed element representation: a flat map from
// feature name to dense numeric leaf. SPEC_FULL.md §2 fixes this in place
// of a generic element type parameter.
type Record map[string]Array

// Clone returns a deep copy of r. Datasets never mutate a produced
// element, but transforms that build derived records (packing bins, in
// particular) need an independent copy to accumulate into.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v.Clone()
	}

	return out
}

// Feature returns the named leaf, or an error wrapping ErrMissingFeature
// if it is absent. The packers in pkg/packing check feature sets with
// their own validation and do not call it.
func (r Record) Feature(name string) (Array, error) {
	arr, ok := r[name]
	if !ok {
		return Array{}, fmt.Errorf("%w: %q", ErrMissingFeature, name)
	}

	return arr, nil
}

// ErrMissingFeature is returned by Record.Feature when the named leaf is
// not present.
var ErrMissingFeature = errors.New("value: missing feature")
