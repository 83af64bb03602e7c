package prefetch_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/prefetch"
)

func TestProcess_RejectsLessThanOneWorker(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(5)))

	_, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 0})
	require.ErrorIs(t, err, prefetch.ErrNumWorkers)
}

func TestProcess_RoundRobinCoversEveryElementExactlyOnce(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(12)))

	ids, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 3, PerWorkerBufferSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	it := ids.Iter()

	t.Cleanup(func() { _ = it.Close() })

	got := collectAll(ctx, t, it)

	want := make([]float64, 12)
	for i := range want {
		want[i] = float64(i)
	}

	sort.Float64s(got)
	assert.Equal(t, want, got, "every resharded element must be produced exactly once, in some worker-interleaved order")
}

func TestProcess_CheckpointRestoreResumesDisjointRemainder(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(20)))

	ids, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 4, PerWorkerBufferSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	it := ids.Iter()

	var seen []float64

	for range 7 {
		e, ok, err := it.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		seen = append(seen, e["value"].Data[0])
	}

	state, err := it.State()
	require.NoError(t, err)
	require.NoError(t, it.SetState(state))

	t.Cleanup(func() { _ = it.Close() })

	rest := collectAll(ctx, t, it)

	all := append(seen, rest...)
	sort.Float64s(all)

	want := make([]float64, 20)
	for i := range want {
		want[i] = float64(i)
	}

	assert.Equal(t, want, all, "restoring mid-stream must reproduce the full 20-element set with nothing lost or duplicated (S5)")
}

func TestProcess_StateShapeMatchesPerWorkerContract(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(10)))

	ids, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 2, PerWorkerBufferSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	it := ids.Iter()

	t.Cleanup(func() { _ = it.Close() })

	_, ok, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	state, err := it.State()
	require.NoError(t, err)

	workersState, ok := state["workers_state"].([]dataset.State)
	require.True(t, ok)
	assert.Len(t, workersState, 2, "one upstream snapshot slot per worker (spec §4.D State shape)")

	skip, ok := state["iterations_to_skip"].([]int)
	require.True(t, ok)
	assert.Len(t, skip, 2)

	_, ok = state["last_worker_index"].(int)
	assert.True(t, ok)
}

func TestProcess_SingleWorkerDegeneratesToSequential(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(6)))

	ids, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 1, PerWorkerBufferSize: 1})
	require.NoError(t, err)

	ctx := context.Background()
	it := ids.Iter()

	t.Cleanup(func() { _ = it.Close() })

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, collectAll(ctx, t, it))
}

func TestProcess_UseAfterCloseFails(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(3)))

	ids, err := prefetch.Process(parent, prefetch.DefaultMultiprocessingOptions())
	require.NoError(t, err)

	it := ids.Iter()
	require.NoError(t, it.Close())

	_, _, err = it.Next(context.Background())
	require.ErrorIs(t, err, prefetch.ErrClosed)
}

func TestProcess_RejectsASecondProcessPrefetchNodeUpstream(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(5)))

	inner, err := prefetch.Process(parent, prefetch.MultiprocessingOptions{NumWorkers: 1})
	require.NoError(t, err)

	_, err = prefetch.Process(inner, prefetch.MultiprocessingOptions{NumWorkers: 1})
	assert.ErrorIs(t, err, prefetch.ErrMultipleProcessPrefetch)
}

func TestProcess_UpstreamErrorSurfacesAsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	parent := dataset.FromSlice(intElems(5))
	mapped := dataset.NewMap(parent, func(_ context.Context, e dataset.Element) (dataset.Element, error) {
		if e["value"].Data[0] == 2 {
			return nil, boom
		}

		return e, nil
	})

	ids, err := prefetch.Process(dataset.NewSyncIter(mapped), prefetch.MultiprocessingOptions{NumWorkers: 1})
	require.NoError(t, err)

	ctx := context.Background()
	it := ids.Iter()

	t.Cleanup(func() { _ = it.Close() })

	var sawErr error

	for range 5 {
		_, _, nextErr := it.Next(ctx)
		if nextErr != nil {
			sawErr = nextErr

			break
		}
	}

	require.Error(t, sawErr)
	assert.ErrorIs(t, sawErr, boom, "an upstream error on any worker must surface from Next unwrapped")
}
