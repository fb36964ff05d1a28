package crosscat

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gendb/internal/metamodel"
	"gendb/internal/store"
)

const (
	ageColNo  = 1
	cityColNo = 2
)

func TestDependenceProbability(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	// A column depends on itself, models or not.
	p, err := tb.cc.ColumnDependenceProbability(ctx, tb.s, id, cityColNo, cityColNo)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	// Distinct columns with no models: undefined, reported as NaN.
	p, err = tb.cc.ColumnDependenceProbability(ctx, tb.s, id, ageColNo, cityColNo)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(p))

	// Both columns share the single clustered block in every model.
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0, 1}, nil))
	p, err = tb.cc.ColumnDependenceProbability(ctx, tb.s, id, ageColNo, cityColNo)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	_, err = tb.cc.ColumnDependenceProbability(ctx, tb.s, id, ageColNo, 0)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDependenceProbabilityUnclusteredBlock(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	// Collapse the model's rows into one cluster: sharing a block no
	// longer witnesses dependence.
	ms, err := tb.cc.model(ctx, tb.s, id, 0)
	require.NoError(t, err)
	flat := ms.clone()
	flat.State.RowPartitions = [][]int{{0, 0, 0, 0}}
	blob, err := flat.encode()
	require.NoError(t, err)
	require.NoError(t, tb.s.ExecOne(ctx,
		`UPDATE crosscat_models SET state_json = ? WHERE generator_id = ? AND modelno = 0`, blob, id))
	tb.cc.cache(tb.s).putModel(id, 0, flat)

	p, err := tb.cc.ColumnDependenceProbability(ctx, tb.s, id, ageColNo, cityColNo)
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestMutualInformationSplitsBudget(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0, 1}, nil))

	mi, err := tb.cc.ColumnMutualInformation(ctx, tb.s, id, ageColNo, cityColNo, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.25, mi)
	// 5 samples over 2 models round up to 3 per model.
	assert.Equal(t, []int{3}, tb.fake.stepSizes)

	tb.cc.DropModels(ctx, tb.s, id, nil)
	_, err = tb.cc.ColumnMutualInformation(ctx, tb.s, id, ageColNo, cityColNo, 5)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTypicalityPassthrough(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	ct, err := tb.cc.ColumnTypicality(ctx, tb.s, id, ageColNo)
	require.NoError(t, err)
	assert.Equal(t, 0.5, ct)

	rt, err := tb.cc.RowTypicality(ctx, tb.s, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rt)
}

func TestColumnValueProbability(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	p, err := tb.cc.ColumnValueProbability(ctx, tb.s, id, cityColNo, "boston")
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	// A value outside the codemap is simply impossible, not an error.
	p, err = tb.cc.ColumnValueProbability(ctx, tb.s, id, cityColNo, "atlantis")
	require.NoError(t, err)
	assert.Zero(t, p)

	tb.cc.DropModels(ctx, tb.s, id, nil)
	_, err = tb.cc.ColumnValueProbability(ctx, tb.s, id, cityColNo, "boston")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRowSimilarity(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	sim, err := tb.cc.RowSimilarity(ctx, tb.s, id, 1, 3, []int{cityColNo})
	require.NoError(t, err)
	assert.Equal(t, 0.5, sim)

	_, err = tb.cc.RowSimilarity(ctx, tb.s, id, 1, 3, []int{0})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPredictiveProbability(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	p, err := tb.cc.RowColumnPredictiveProbability(ctx, tb.s, id, 1, cityColNo)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	_, err = tb.cc.RowColumnPredictiveProbability(ctx, tb.s, id, 99, cityColNo)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInferConfidence(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	// Row 1 is alice (34, boston): imputing city conditions on the
	// observed age at the same internal row.
	value, confidence, err := tb.cc.InferConfidence(ctx, tb.s, id, cityColNo, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "cambridge", value)
	assert.Equal(t, 0.75, confidence)
	require.Len(t, tb.fake.conditions, 1)
	assert.Equal(t, Cell{Row: 0, Col: 0, Code: 34}, tb.fake.conditions[0])

	// Row 4 is dave with a NULL age: only the city is observed, and the
	// missing value itself never becomes a condition.
	value, _, err = tb.cc.InferConfidence(ctx, tb.s, id, ageColNo, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, 3.5, value)
	require.Len(t, tb.fake.conditions, 1)
	assert.Equal(t, Cell{Row: 3, Col: 1, Code: 2}, tb.fake.conditions[0])
}

func TestSimulate(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	samples, err := tb.cc.Simulate(ctx, tb.s, id,
		[]metamodel.Constraint{{ColNo: cityColNo, Value: "cambridge"}},
		[]int{ageColNo, cityColNo}, 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	for _, sample := range samples {
		assert.Equal(t, 1.5, sample[0])
		assert.Equal(t, "boston", sample[1])
	}
	// The constraint was encoded at the synthetic row past the table.
	require.Len(t, tb.fake.conditions, 1)
	assert.Equal(t, Cell{Row: 4, Col: 1, Code: 1}, tb.fake.conditions[0])

	_, err = tb.cc.Simulate(ctx, tb.s, id,
		[]metamodel.Constraint{{ColNo: cityColNo, Value: "atlantis"}},
		[]int{ageColNo}, 1)
	require.ErrorIs(t, err, errUnknownValue)
}
