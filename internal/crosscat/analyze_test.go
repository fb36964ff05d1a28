package crosscat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gendb/internal/model"
	"gendb/internal/store"
)

func TestAnalyzeRequiresBudget(t *testing.T) {
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	err := tb.cc.AnalyzeModels(context.Background(), tb.s, id, model.AnalyzeOptions{})
	require.Error(t, err)
	err = tb.cc.AnalyzeModels(context.Background(), tb.s, id,
		model.AnalyzeOptions{Iterations: 5, CheckpointEvery: -1})
	require.Error(t, err)
}

func TestAnalyzeIterationBudget(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0, 1}, nil))

	require.NoError(t, tb.cc.AnalyzeModels(ctx, tb.s, id, model.AnalyzeOptions{Iterations: 5}))

	// A pure iteration budget with no granularity runs one engine call.
	assert.Equal(t, []int{5}, tb.fake.stepSizes)
	for _, no := range []int{0, 1} {
		n, err := tb.s.ModelIterations(ctx, id, no)
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
		ms, err := tb.cc.model(ctx, tb.s, id, no)
		require.NoError(t, err)
		assert.Equal(t, 5, ms.Iterations)
		assert.Equal(t, []float64{5}, ms.LogScore)
	}
}

func TestAnalyzeCheckpointGranularity(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	require.NoError(t, tb.cc.AnalyzeModels(ctx, tb.s, id,
		model.AnalyzeOptions{Iterations: 5, CheckpointEvery: 2}))

	// The final checkpoint is clamped to the remaining budget.
	assert.Equal(t, []int{2, 2, 1}, tb.fake.stepSizes)
	n, err := tb.s.ModelIterations(ctx, id, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	// One diagnostic record per checkpoint.
	ms, err := tb.cc.model(ctx, tb.s, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 1}, ms.LogScore)
	assert.Len(t, ms.NumBlocks, 3)
	assert.Len(t, ms.Alpha, 3)

	// Persisted state agrees with the cache.
	require.NoError(t, tb.s.Close())
	tb2 := openTestBackend(t, tb.path)
	ms2, err := tb2.cc.model(ctx, tb2.s, id, 0)
	require.NoError(t, err)
	assert.Equal(t, ms.Iterations, ms2.Iterations)
	assert.Equal(t, ms.LogScore, ms2.LogScore)
}

func TestAnalyzeSubset(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0, 1}, nil))

	require.NoError(t, tb.cc.AnalyzeModels(ctx, tb.s, id,
		model.AnalyzeOptions{Models: []int{1}, Iterations: 3}))

	n, err := tb.s.ModelIterations(ctx, id, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = tb.s.ModelIterations(ctx, id, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestAnalyzeExpiredDeadline(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	// The budget expires before the first checkpoint starts; nothing runs.
	require.NoError(t, tb.cc.AnalyzeModels(ctx, tb.s, id,
		model.AnalyzeOptions{MaxDuration: time.Nanosecond}))
	assert.Empty(t, tb.fake.stepSizes)
	n, err := tb.s.ModelIterations(ctx, id, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalyzeKernelMismatch(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	cfgA := model.DefaultConfig()
	cfgA.Kernels = []string{"column_partition_assignments"}
	cfgB := model.DefaultConfig()
	cfgB.Kernels = []string{"row_partition_assignments"}
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, &cfgA))
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{1}, &cfgB))

	err := tb.cc.AnalyzeModels(ctx, tb.s, id, model.AnalyzeOptions{Iterations: 2})
	require.Error(t, err)

	// The failed checkpoint left no partial progress behind.
	for _, no := range []int{0, 1} {
		n, err := tb.s.ModelIterations(ctx, id, no)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	// Restricting to one model passes its kernel set through.
	require.NoError(t, tb.cc.AnalyzeModels(ctx, tb.s, id,
		model.AnalyzeOptions{Models: []int{0}, Iterations: 1}))
	require.Len(t, tb.fake.stepKernels, 1)
	assert.Equal(t, cfgA.Kernels, tb.fake.stepKernels[0])
}

func TestAnalyzeNoModels(t *testing.T) {
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	err := tb.cc.AnalyzeModels(context.Background(), tb.s, id, model.AnalyzeOptions{Iterations: 1})
	require.ErrorIs(t, err, store.ErrNotFound)
}
