package prefetch

import (
	"fmt"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

// init wires the single-producer thread-prefetch constructor into the
// dataset plug-point registry under "prefetch" (spec §4.A, §9), so an
// iter-to-iter prefetch stage is discoverable by name like pack, filter,
// shuffle, repeat, and slice. The thread-pool variant (Thread) takes a
// MapDataset parent rather than an IterDataset, so it has no home in the
// iter-to-iter registry signature; it stays reachable only through its
// direct Go constructor, the same way dataset.NewShard does for "shard".
func init() {
	dataset.RegisterIterTransform("prefetch", buildPrefetchTransform)
}

func buildPrefetchTransform(parent dataset.IterDataset, args dataset.State) (dataset.IterDataset, error) {
	buffer, ok := args["buffer"].(int)
	if !ok {
		return nil, fmt.Errorf("%w: prefetch requires a \"buffer\" int", dataset.ErrInvalidTransformArgs)
	}

	return IterThread(parent, buffer), nil
}
