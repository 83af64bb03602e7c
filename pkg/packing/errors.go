// Package packing implements the single-bin streaming packer and the
// first-fit multi-bin packer (spec §4.E): iter-to-iter transforms that
// rearrange variable-length feature sequences into fixed-length records
// carrying segment-id and position metadata.
package packing

import "errors"

var (
	// ErrFeatureMismatch is returned by a packer's Next when an input
	// record's feature set does not match the packer's length structure
	// exactly. The constructors do not inspect input records, so a
	// mismatch is reported at the first such record, not at construction.
	ErrFeatureMismatch = errors.New("packing: record features do not match length structure")

	// ErrEmptyLengthStruct is returned by a packer constructor given an
	// empty length structure.
	ErrEmptyLengthStruct = errors.New("packing: length structure must declare at least one feature")

	// ErrNumBins is returned when NewFirstFit is given fewer than one bin.
	ErrNumBins = errors.New("packing: num_packing_bins must be >= 1")

	// ErrClosed is returned by iterator methods invoked after Close.
	ErrClosed = errors.New("packing: iterator closed")
)
