package packing

import (
	"fmt"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// init wires the packing constructors into the dataset plug-point
// registry under "pack" (spec §4.A, §9), so sequence packing is
// discoverable by name alongside prefetch, filter, shuffle, repeat, and
// slice. A single registered name dispatches between the single-bin
// streaming packer (spec §4.E.1, the default) and the first-fit
// multi-bin packer (spec §4.E.2, selected by supplying an int "num_bins"
// greater than 1).
func init() {
	dataset.RegisterIterTransform("pack", buildPackTransform)
}

func buildPackTransform(parent dataset.IterDataset, args dataset.State) (dataset.IterDataset, error) {
	lengths, ok := args["lengths"].(LengthStruct)
	if !ok {
		return nil, fmt.Errorf("%w: pack requires a \"lengths\" LengthStruct", dataset.ErrInvalidTransformArgs)
	}

	numBins, hasNumBins := args["num_bins"].(int)
	if !hasNumBins || numBins <= 1 {
		return NewSingleBin(parent, lengths)
	}

	shuffleBins, _ := args["shuffle_bins"].(bool)
	seed, _ := args["seed"].(uint64)

	return NewFirstFit(parent, lengths, numBins, shuffleBins, seed)
}
