package prefetch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/lazygrain/pkg/dataset"
	"github.com/Sumatoshi-tech/lazygrain/pkg/prefetch"
)

func TestIterThread_StateBeforeAnyNextMatchesFreshIterator(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(10)))

	buffered := prefetch.IterThread(parent, 4)
	it := buffered.Iter()

	t.Cleanup(func() { _ = it.Close() })

	// The read-ahead goroutine may already have pulled several elements
	// from upstream by now, but State() must still reflect "nothing
	// consumed yet" (S6): restoring it into a fresh cursor must replay
	// the whole sequence.
	state, err := it.State()
	require.NoError(t, err)

	fresh := parent.Iter()
	require.NoError(t, fresh.SetState(state))

	ctx := context.Background()
	got := collectAll(ctx, t, fresh)

	want := make([]float64, 10)
	for i := range want {
		want[i] = float64(i)
	}

	assert.Equal(t, want, got)
}

func TestIterThread_OrderPreservedWithReadAhead(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(30)))

	buffered := prefetch.IterThread(parent, 6)
	it := buffered.Iter()

	t.Cleanup(func() { _ = it.Close() })

	ctx := context.Background()
	got := collectAll(ctx, t, it)

	want := make([]float64, 30)
	for i := range want {
		want[i] = float64(i)
	}

	assert.Equal(t, want, got)
}

func TestIterThread_CheckpointResumesExactlyAfterLastEmitted(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(15)))

	buffered := prefetch.IterThread(parent, 3)
	it := buffered.Iter()

	ctx := context.Background()

	for range 4 {
		_, ok, err := it.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}

	state, err := it.State()
	require.NoError(t, err)
	require.NoError(t, it.Close())

	restoredParent := dataset.NewSyncIter(dataset.FromSlice(intElems(15)))
	restoredBuffered := prefetch.IterThread(restoredParent, 3)
	restored := restoredBuffered.Iter()

	t.Cleanup(func() { _ = restored.Close() })

	require.NoError(t, restored.SetState(state))

	got := collectAll(ctx, t, restored)

	want := make([]float64, 11)
	for i := range want {
		want[i] = float64(i + 4)
	}

	assert.Equal(t, want, got)
}

func TestIterThread_SynchronousDegenerateWithZeroBuffer(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(4)))

	buffered := prefetch.IterThread(parent, 0)
	it := buffered.Iter()

	t.Cleanup(func() { _ = it.Close() })

	ctx := context.Background()
	assert.Equal(t, []float64{0, 1, 2, 3}, collectAll(ctx, t, it))
}

func TestIterThread_UseAfterCloseFails(t *testing.T) {
	t.Parallel()

	parent := dataset.NewSyncIter(dataset.FromSlice(intElems(3)))

	buffered := prefetch.IterThread(parent, 2)
	it := buffered.Iter()
	require.NoError(t, it.Close())

	_, _, err := it.Next(context.Background())
	require.ErrorIs(t, err, prefetch.ErrClosed)
}
