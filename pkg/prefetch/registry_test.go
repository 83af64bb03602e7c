package prefetch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

func TestRegistry_PrefetchIsRegisteredAtInit(t *testing.T) {
	t.Parallel()

	names := dataset.IterTransforms()
	_, ok := names["prefetch"]
	assert.True(t, ok, "expected \"prefetch\" to be registered by pkg/prefetch's init()")
}

func TestRegistry_BuildIterTransform_Prefetch(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice([]dataset.Element{
		{"value": value.NewArray1D(value.Int64, []float64{1})},
		{"value": value.NewArray1D(value.Int64, []float64{2})},
	}))

	built, err := dataset.BuildIterTransform("prefetch", parent, dataset.State{"buffer": 4})
	require.NoError(t, err)

	it := built.Iter()
	t.Cleanup(func() { _ = it.Close() })

	ctx := context.Background()

	e, ok, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(1), e["value"].Data[0])
}

func TestRegistry_BuildIterTransform_PrefetchMissingArgsIsInvalid(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice([]dataset.Element{
		{"value": value.NewArray1D(value.Int64, []float64{1})},
	}))

	_, err := dataset.BuildIterTransform("prefetch", parent, dataset.State{})
	require.ErrorIs(t, err, dataset.ErrInvalidTransformArgs)
}
