package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

func TestArraySlice_PreservesInnerDimension(t *testing.T) {
	t.Parallel()

	arr := value.Array{
		Shape: []int{3, 2},
		Dtype: value.Float32,
		Data:  []float64{1, 2, 3, 4, 5, 6},
	}

	sliced := arr.Slice(1, 3)

	assert.Equal(t, []int{2, 2}, sliced.Shape)
	assert.Equal(t, []float64{3, 4, 5, 6}, sliced.Data)
}

func TestArray_ContiguousAndClone(t *testing.T) {
	t.Parallel()

	arr := value.NewArray1D(value.Int64, []float64{1, 2, 3})
	assert.True(t, arr.Contiguous())

	clone := arr.Clone()
	clone.Data[0] = 99
	assert.NotEqual(t, clone.Data[0], arr.Data[0], "clone must not alias the original backing store")
}

func TestRecordFeature_MissingIsError(t *testing.T) {
	t.Parallel()

	rec := value.Record{"inputs": value.NewArray1D(value.Int64, []float64{1, 2})}

	_, err := rec.Feature("targets")
	require.Error(t, err)
	assert.ErrorIs(t, err, value.ErrMissingFeature)

	got, err := rec.Feature("inputs")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestRecordClone_IsDeep(t *testing.T) {
	t.Parallel()

	rec := value.Record{"inputs": value.NewArray1D(value.Int64, []float64{1, 2, 3})}
	clone := rec.Clone()
	clone["inputs"].Data[0] = 42

	assert.Equal(t, float64(1), rec["inputs"].Data[0])
}
