package packing

import (
	"context"
	"math/rand/v2"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// firstFitIterDataset wraps an IterDataset parent with the first-fit
// multi-bin packer of spec §4.E.2.
type firstFitIterDataset struct {
	parent      dataset.IterDataset
	lengths     LengthStruct
	numBins     int
	shuffleBins bool
	seed        uint64
}

// NewFirstFit wraps parent with a first-fit packer holding numBins
// concurrent bins. When shuffleBins is true, the emission order of each
// completed group of numBins bins is permuted deterministically by seed
// before being yielded (spec §4.E.2).
func NewFirstFit(parent dataset.IterDataset, lengths LengthStruct, numBins int, shuffleBins bool, seed uint64) (dataset.IterDataset, error) {
	if len(lengths) == 0 {
		return nil, ErrEmptyLengthStruct
	}

	if numBins < 1 {
		return nil, ErrNumBins
	}

	return &firstFitIterDataset{
		parent:      parent,
		lengths:     lengths,
		numBins:     numBins,
		shuffleBins: shuffleBins,
		seed:        seed,
	}, nil
}

func (d *firstFitIterDataset) Parents() []dataset.Node { return []dataset.Node{d.parent} }

func (d *firstFitIterDataset) Iter() dataset.DatasetIterator {
	bins := make([]*bin, d.numBins)
	for i := range bins {
		bins[i] = newBin(d.lengths)
	}

	return &firstFitIterator{
		cursor:      d.parent.Iter(),
		lengths:     d.lengths,
		bins:        bins,
		shuffleBins: d.shuffleBins,
		seed:        d.seed,
	}
}

func (d *firstFitIterDataset) reshardParents(workerIndex, workerCount int) dataset.IterDataset {
	return &firstFitIterDataset{
		parent:      dataset.Reshard(d.parent, workerIndex, workerCount).(dataset.IterDataset),
		lengths:     d.lengths,
		numBins:     d.numBins,
		shuffleBins: d.shuffleBins,
		seed:        d.seed,
	}
}

type firstFitIterator struct {
	cursor  dataset.DatasetIterator
	lengths LengthStruct
	bins    []*bin

	shuffleBins bool
	seed        uint64
	epoch       int

	// queue holds records ready to be handed to the consumer: a group of
	// every non-empty bin, flushed together either mid-stream (no bin
	// fits the incoming element) or at end-of-input, optionally shuffled.
	queue []dataset.Element

	exhausted bool
	closed    bool
}

func (it *firstFitIterator) Next(ctx context.Context) (dataset.Element, bool, error) {
	if it.closed {
		return nil, false, ErrClosed
	}

	for {
		if len(it.queue) > 0 {
			rec := it.queue[0]
			it.queue = it.queue[1:]

			return rec, true, nil
		}

		if it.exhausted {
			return nil, false, nil
		}

		e, ok, err := it.cursor.Next(ctx)
		if err != nil {
			return nil, false, err
		}

		if !ok {
			it.exhausted = true
			it.flushGroup()

			continue
		}

		if err := it.bins[0].validate(e); err != nil {
			return nil, false, err
		}

		it.place(e)
	}
}

// place runs the first-fit placement rule: the lowest-index bin that fits
// e without truncation takes it; failing that, no single bin is evicted —
// the entire current group of up to numBins bins is flushed together
// (spec §4.E.2's "a completed group of numBins bins", the same unit
// shuffle_bins permutes), freeing every bin, and e starts a fresh bin at
// index 0. Ground: original_source/grain's packing_test.py
// test_pack_sequences_length_3 with num_packing_bins=2 asserts output in
// strict group order ([e1, e2, e3]), which only a whole-group flush
// reproduces; evicting a single "fullest" bin does not.
func (it *firstFitIterator) place(e dataset.Element) {
	for _, b := range it.bins {
		if b.fits(e) {
			b.add(e)

			return
		}
	}

	it.flushGroup()
	it.bins[0].add(e)
}

// flushGroup empties every remaining non-empty bin into the queue as one
// completed group, in bin-index order, applying the deterministic
// per-group shuffle if configured (spec §4.E.2). Called both mid-stream
// (no bin fits the next element) and at end-of-input.
func (it *firstFitIterator) flushGroup() {
	var group []dataset.Element

	for _, b := range it.bins {
		if !b.isEmpty() {
			group = append(group, b.toRecord())
			b.reset()
		}
	}

	if it.shuffleBins && len(group) > 1 {
		group = shuffleGroup(group, it.seed, it.epoch)
		it.epoch++
	}

	it.queue = append(it.queue, group...)
}

func shuffleGroup(group []dataset.Element, seed uint64, epoch int) []dataset.Element {
	out := append([]dataset.Element(nil), group...)
	rng := rand.New(rand.NewPCG(seed, uint64(epoch))) //nolint:gosec // deterministic reorder, not a security primitive

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	return out
}

func (it *firstFitIterator) State() (dataset.State, error) {
	upstream, err := it.cursor.State()
	if err != nil {
		return nil, err
	}

	frozenBins := make([]dataset.Element, 0, len(it.bins))

	for _, b := range it.bins {
		if !b.isEmpty() {
			frozenBins = append(frozenBins, b.toRecord())
		} else {
			frozenBins = append(frozenBins, nil)
		}
	}

	return dataset.State{
		"upstream":  upstream,
		"exhausted": it.exhausted,
		"bins":      frozenBins,
		"queue":     append([]dataset.Element(nil), it.queue...),
		"epoch":     it.epoch,
	}, nil
}

func (it *firstFitIterator) SetState(s dataset.State) error {
	upstream, _ := s["upstream"].(dataset.State)
	if err := it.cursor.SetState(upstream); err != nil {
		return err
	}

	it.exhausted, _ = s["exhausted"].(bool)
	it.epoch, _ = s["epoch"].(int)

	queue, _ := s["queue"].([]dataset.Element)
	it.queue = append([]dataset.Element(nil), queue...)

	frozenBins, _ := s["bins"].([]dataset.Element)
	for i, b := range it.bins {
		b.reset()

		if i < len(frozenBins) && frozenBins[i] != nil {
			restoreBinFromRecord(b, frozenBins[i])
		}
	}

	return nil
}

func (it *firstFitIterator) Close() error {
	it.closed = true

	return it.cursor.Close()
}
