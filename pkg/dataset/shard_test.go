package dataset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

func intElems(n int) []dataset.Element {
	elems := make([]dataset.Element, n)
	for i := range elems {
		elems[i] = dataset.Element{"value": value.NewArray1D(value.Int64, []float64{float64(i)})}
	}

	return elems
}

func collectAll(t *testing.T, ds dataset.MapDataset) []float64 {
	t.Helper()

	ctx := context.Background()
	length := ds.Length()

	got := make([]float64, 0, length)

	for i := range length {
		e, ok, err := ds.At(ctx, i)
		require.NoError(t, err)
		require.True(t, ok)

		got = append(got, e["value"].Data[0])
	}

	return got
}

func TestShard_EvenSplit(t *testing.T) {
	t.Parallel()

	parent := dataset.FromSlice(intElems(10))

	shard0 := dataset.NewShard(parent, 0, 2, false)
	shard1 := dataset.NewShard(parent, 1, 2, false)

	assert.Equal(t, []float64{0, 1, 2, 3, 4}, collectAll(t, shard0))
	assert.Equal(t, []float64{5, 6, 7, 8, 9}, collectAll(t, shard1))
}

func TestShard_RemainderDistributedAcrossFirstShards(t *testing.T) {
	t.Parallel()

	parent := dataset.FromSlice(intElems(10))

	shard0 := dataset.NewShard(parent, 0, 3, false)
	shard1 := dataset.NewShard(parent, 1, 3, false)
	shard2 := dataset.NewShard(parent, 2, 3, false)

	assert.Equal(t, 4, shard0.Length())
	assert.Equal(t, 3, shard1.Length())
	assert.Equal(t, 3, shard2.Length())

	var total int
	for _, s := range []dataset.MapDataset{shard0, shard1, shard2} {
		total += s.Length()
	}

	assert.Equal(t, 10, total)
}

func TestShard_DropRemainderTruncatesEvenly(t *testing.T) {
	t.Parallel()

	parent := dataset.FromSlice(intElems(10))

	shard0 := dataset.NewShard(parent, 0, 3, true)
	shard1 := dataset.NewShard(parent, 1, 3, true)
	shard2 := dataset.NewShard(parent, 2, 3, true)

	assert.Equal(t, 3, shard0.Length())
	assert.Equal(t, 3, shard1.Length())
	assert.Equal(t, 3, shard2.Length())
}

func TestShard_WrapsPerEpochPreservingGlobalIndices(t *testing.T) {
	t.Parallel()

	parent := dataset.FromSlice(intElems(10))
	shard0 := dataset.NewShard(parent, 0, 2, false)

	ctx := context.Background()

	// shard0 has length 5 over global indices [0,5); index 5 (epoch 1,
	// position 0) should map back to global index 0.
	e, ok, err := shard0.At(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(0), e["value"].Data[0])
}
