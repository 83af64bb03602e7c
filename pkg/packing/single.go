package packing

import (
	"context"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// singleBinIterDataset wraps an IterDataset parent with the single-bin
// streaming packer of spec §4.E.1.
type singleBinIterDataset struct {
	parent  dataset.IterDataset
	lengths LengthStruct
}

// NewSingleBin wraps parent with a single-bin streaming packer targeting
// lengths. lengths must be non-empty.
func NewSingleBin(parent dataset.IterDataset, lengths LengthStruct) (dataset.IterDataset, error) {
	if len(lengths) == 0 {
		return nil, ErrEmptyLengthStruct
	}

	return &singleBinIterDataset{parent: parent, lengths: lengths}, nil
}

func (d *singleBinIterDataset) Parents() []dataset.Node { return []dataset.Node{d.parent} }

func (d *singleBinIterDataset) Iter() dataset.DatasetIterator {
	return &singleBinIterator{cursor: d.parent.Iter(), lengths: d.lengths, bin: newBin(d.lengths)}
}

func (d *singleBinIterDataset) reshardParents(workerIndex, workerCount int) dataset.IterDataset {
	return &singleBinIterDataset{
		parent:  dataset.Reshard(d.parent, workerIndex, workerCount).(dataset.IterDataset),
		lengths: d.lengths,
	}
}

type singleBinIterator struct {
	cursor dataset.DatasetIterator
	lengths LengthStruct

	bin *bin

	// pendingSolo is drained by Next ahead of the in-progress bin and
	// cleared by SetState. Nothing appends to it: an already-full
	// incoming element (spec §4.E.1 rule 1) has its solo record returned
	// from Next directly.
	pendingSolo []dataset.Element

	exhausted bool
	closed    bool
}

func (it *singleBinIterator) Next(ctx context.Context) (dataset.Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	if len(it.pendingSolo) > 0 {
		rec := it.pendingSolo[0]
		it.pendingSolo = it.pendingSolo[1:]

		return rec, true, nil
	}

	for !it.exhausted {
		e, ok, err := it.cursor.Next(ctx)
		if err != nil {
			return nil, false, err
		}

		if !ok {
			it.exhausted = true

			break
		}

		if err := it.bin.validate(e); err != nil {
			return nil, false, err
		}

		if fillsExactly(e, it.lengths) {
			return soloRecord(e, it.lengths), true, nil
		}

		if it.bin.fits(e) {
			it.bin.add(e)

			continue
		}

		// Append would overflow: yield the current bin (if it holds
		// anything) and start a fresh one containing e.
		var out dataset.Element

		if !it.bin.isEmpty() {
			out = it.bin.toRecord()
			it.bin.reset()
		}

		it.bin.add(e)

		if out != nil {
			return out, true, nil
		}
	}

	if !it.bin.isEmpty() {
		out := it.bin.toRecord()
		it.bin.reset()

		return out, true, nil
	}

	return nil, false, nil
}

func (it *singleBinIterator) State() (dataset.State, error) {
	upstream, err := it.cursor.State()
	if err != nil {
		return nil, err
	}

	return dataset.State{
		"upstream":   upstream,
		"exhausted":  it.exhausted,
		"bin_frozen": it.snapshotBin(),
	}, nil
}

// snapshotBin captures enough of the in-progress bin to rebuild it on
// restore: nil for an empty bin, otherwise a one-entry list holding the
// bin's rendered record, whose segment ids and positions SetState loads
// back as they are (spec §5: "state dictionaries are copied on state()").
func (it *singleBinIterator) snapshotBin() []dataset.Element {
	// The bin itself doesn't retain original elements once truncated and
	// merged; instead snapshot its rendered contents directly, which is
	// sufficient to resume emitting from (see SetState).
	if it.bin.isEmpty() {
		return nil
	}

	return []dataset.Element{it.bin.toRecord()}
}

func (it *singleBinIterator) SetState(s dataset.State) error {
	upstream, _ := s["upstream"].(dataset.State)
	if err := it.cursor.SetState(upstream); err != nil {
		return err
	}

	it.exhausted, _ = s["exhausted"].(bool)
	it.bin.reset()
	it.pendingSolo = nil

	frozen, _ := s["bin_frozen"].([]dataset.Element)
	for _, rec := range frozen {
		restoreBinFromRecord(it.bin, rec)
	}

	return nil
}

func (it *singleBinIterator) Close() error {
	it.closed = true

	return it.cursor.Close()
}
