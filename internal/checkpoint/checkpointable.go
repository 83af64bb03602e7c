// Package checkpoint persists and restores pipeline iterator state: one
// checkpoint directory per pipeline, one encoded dataset.State per stage,
// plus metadata used to validate a checkpoint before resuming from it.
package checkpoint

import "github.com/Sumatoshi-tech/lazygrain/pkg/dataset"

// Checkpointable is satisfied by any pipeline stage whose progress can be
// snapshotted and restored. Every dataset.DatasetIterator qualifies; the
// narrower interface keeps Manager decoupled from Next/Close.
type Checkpointable interface {
	State() (dataset.State, error)
	SetState(dataset.State) error
}
