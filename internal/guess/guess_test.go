package guess

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gendb/internal/model"
)

func rowsOf(cols ...[]any) [][]any {
	n := len(cols[0])
	rows := make([][]any, n)
	for r := 0; r < n; r++ {
		row := make([]any, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows
}

func TestStatTypesBasic(t *testing.T) {
	var ids, cities, heights []any
	for i := 0; i < 25; i++ {
		ids = append(ids, fmt.Sprintf("k%d", i))
		cities = append(cities, []string{"boston", "cambridge"}[i%2])
		heights = append(heights, 1.5+float64(i)/100)
	}

	got, err := StatTypes([]string{"id", "city", "height"}, rowsOf(ids, cities, heights), nil)
	require.NoError(t, err)
	assert.Equal(t, []model.StatType{model.Key, model.Categorical, model.Numerical}, got)
}

func TestStatTypesSingleKey(t *testing.T) {
	a := []any{"x1", "x2", "x3"}
	b := []any{"y1", "y2", "y3"}

	got, err := StatTypes([]string{"a", "b"}, rowsOf(a, b), nil)
	require.NoError(t, err)
	// Only the first all-distinct column becomes the key; the second has
	// too few distinct values to escape categorical.
	assert.Equal(t, model.Key, got[0])
	assert.Equal(t, model.Categorical, got[1])
}

func TestStatTypesEmptyColumnIgnored(t *testing.T) {
	empty := []any{nil, nil, nil}
	vals := []any{1.0, 2.0, 1.0}

	got, err := StatTypes([]string{"empty", "vals"}, rowsOf(empty, vals), nil)
	require.NoError(t, err)
	assert.Equal(t, model.Ignore, got[0])
}

func TestStatTypesNumericalByRatio(t *testing.T) {
	// Many distinct values, almost all numeric: numerical despite one
	// stray string.
	var vals []any
	for i := 0; i < 30; i++ {
		vals = append(vals, float64(i)+0.5)
	}
	vals = append(vals, "n/a")

	got, err := StatTypes([]string{"v"}, rowsOf(vals), nil)
	require.NoError(t, err)
	assert.Equal(t, model.Numerical, got[0])
}

func TestStatTypesMostlyTextIgnored(t *testing.T) {
	var vals []any
	for i := 0; i < 30; i++ {
		vals = append(vals, fmt.Sprintf("note-%d-%d", i, i*i))
	}
	// All distinct, but key is taken by an override elsewhere, so the
	// free-text column falls through to ignore.
	got, err := StatTypes([]string{"id", "notes"}, rowsOf(vals, vals),
		map[string]model.StatType{"id": model.Key})
	require.NoError(t, err)
	assert.Equal(t, model.Ignore, got[1])
}

func TestStatTypesOverrides(t *testing.T) {
	vals := []any{"a", "b", "c"}

	got, err := StatTypes([]string{"v"}, rowsOf(vals),
		map[string]model.StatType{"v": model.Cyclic})
	require.NoError(t, err)
	assert.Equal(t, model.Cyclic, got[0])

	_, err = StatTypes([]string{"v"}, rowsOf(vals),
		map[string]model.StatType{"missing": model.Key})
	assert.Error(t, err)

	_, err = StatTypes([]string{"v"}, rowsOf(vals),
		map[string]model.StatType{"v": "sideways"})
	assert.Error(t, err)
}
