package dataset

import "errors"

// Sentinel errors for the dataset engine's configuration error class
// (spec §7.1): fail fast at wire-up, never recoverable.
var (
	// ErrUnknownTransform is returned when a name is looked up in a
	// transform registry with no matching constructor.
	ErrUnknownTransform = errors.New("dataset: unknown transform")

	// ErrInvalidTransformArgs is returned when a registered constructor
	// is invoked with an args State missing a required key or holding a
	// value of the wrong type.
	ErrInvalidTransformArgs = errors.New("dataset: invalid transform args")

	// ErrNegativeIndex is returned by At when called with a negative
	// index.
	ErrNegativeIndex = errors.New("dataset: negative index")

	// ErrClosed is returned by a DatasetIterator method called after
	// Close.
	ErrClosed = errors.New("dataset: iterator closed")
)
