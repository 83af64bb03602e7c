package dataset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
)

func TestRange_LengthAndAt(t *testing.T) {
	t.Parallel()

	r := dataset.NewRange(0, 10, 2, nil)
	assert.Equal(t, 5, r.Length())

	ctx := context.Background()

	e, ok, err := r.At(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(0), e["value"].Data[0])

	e, ok, err = r.At(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(8), e["value"].Data[0])
}

func TestRange_WrapsPastLength(t *testing.T) {
	t.Parallel()

	r := dataset.NewRange(0, 5, 1, nil)
	ctx := context.Background()

	e, ok, err := r.At(ctx, 7) // 7 mod 5 == 2
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), e["value"].Data[0])
}

func TestRange_NegativeIndexRejected(t *testing.T) {
	t.Parallel()

	r := dataset.NewRange(0, 5, 1, nil)

	_, _, err := r.At(context.Background(), -1)
	require.ErrorIs(t, err, dataset.ErrNegativeIndex)
}

func TestRange_ToIter_SynchronousTraversal(t *testing.T) {
	t.Parallel()

	r := dataset.NewRange(0, 4, 1, nil)
	it := r.ToIter().Iter()

	ctx := context.Background()

	var got []float64

	for {
		e, ok, err := it.Next(ctx)
		require.NoError(t, err)

		if !ok {
			break
		}

		got = append(got, e["value"].Data[0])
	}

	assert.Equal(t, []float64{0, 1, 2, 3}, got)
}
