package crosscat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertManyAppendsAndUpdatesModels(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0, 1}, nil))

	rows := [][]any{
		{"erin", 38.0, "boston"},
		{"frank", nil, "cambridge"},
	}
	require.NoError(t, tb.cc.InsertMany(ctx, tb.s, id, rows))

	assert.Equal(t, 6, tb.countRows(t, "people"))
	for _, no := range []int{0, 1} {
		ms, err := tb.cc.model(ctx, tb.s, id, no)
		require.NoError(t, err)
		assert.Equal(t, 6, ms.State.NumRows())
	}

	// Persisted state grew along with the cache.
	require.NoError(t, tb.s.Close())
	tb2 := openTestBackend(t, tb.path)
	ms, err := tb2.cc.model(ctx, tb2.s, id, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, ms.State.NumRows())
}

func TestInsertManyColumnOrderFollowsTable(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	// Full rows are in table order (name, age, city) even though the
	// generator models (age, city).
	require.NoError(t, tb.cc.InsertMany(ctx, tb.s, id, [][]any{{"erin", 38.0, "boston"}}))

	vals, err := tb.s.TableRowValues(ctx, "people", []string{"name", "age", "city"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "erin", vals[0])
	assert.Equal(t, 38.0, vals[1])
	assert.Equal(t, "boston", vals[2])
}

func TestInsertManyNoModels(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	require.NoError(t, tb.cc.InsertMany(ctx, tb.s, id, [][]any{{"erin", 38.0, "boston"}}))
	assert.Equal(t, 5, tb.countRows(t, "people"))
}

func TestInsertManyEmpty(t *testing.T) {
	tb := newTestBackend(t)
	id := tb.createGenerator(t)

	require.NoError(t, tb.cc.InsertMany(context.Background(), tb.s, id, nil))
	assert.Equal(t, 4, tb.countRows(t, "people"))
}

func TestInsertManyUnknownCategoricalRollsBack(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	err := tb.cc.InsertMany(ctx, tb.s, id, [][]any{{"erin", 38.0, "atlantis"}})
	require.Error(t, err)

	// The table write inside the failed scope was rolled back, and the
	// model state is untouched.
	assert.Equal(t, 4, tb.countRows(t, "people"))
	ms, err := tb.cc.model(ctx, tb.s, id, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, ms.State.NumRows())
}

func TestInsertManySnapshotMismatchRollsBack(t *testing.T) {
	ctx := context.Background()
	tb := newTestBackend(t)
	id := tb.createGenerator(t)
	require.NoError(t, tb.cc.InitializeModels(ctx, tb.s, id, []int{0}, nil))

	tb.fake.failInsert = true
	err := tb.cc.InsertMany(ctx, tb.s, id, [][]any{{"erin", 38.0, "boston"}})
	require.Error(t, err)

	assert.Equal(t, 4, tb.countRows(t, "people"))
	ms, err := tb.cc.model(ctx, tb.s, id, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, ms.State.NumRows())
}
