package crosscat

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gendb/internal/model"
	"gendb/internal/store"
)

// fakeEngine is a deterministic Engine for exercising the backend's
// persistence, caching, and budget logic. Initialize yields a single block
// with rows clustered by parity; Step returns states unchanged and records
// its call parameters.
type fakeEngine struct {
	stepSizes   []int
	stepKernels [][]string
	conditions  []Cell

	failInsert bool
}

func (f *fakeEngine) Initialize(ctx context.Context, meta *Metadata, data [][]float64, chains int, initialization, rowInitialization string) ([]*LatentState, error) {
	states := make([]*LatentState, chains)
	for i := range states {
		part := make([]int, len(data))
		for r := range part {
			part[r] = r % 2
		}
		states[i] = &LatentState{
			ColumnAssignments: make([]int, meta.NumColumns()),
			RowPartitions:     [][]int{part},
			Alpha:             1,
		}
	}
	return states, nil
}

func (f *fakeEngine) Step(ctx context.Context, meta *Metadata, data [][]float64, kernels []string, states []*LatentState, steps int) ([]*LatentState, []StepDiagnostics, error) {
	f.stepSizes = append(f.stepSizes, steps)
	f.stepKernels = append(f.stepKernels, kernels)
	out := make([]*LatentState, len(states))
	diags := make([]StepDiagnostics, len(states))
	for i, st := range states {
		out[i] = st.clone()
		diags[i] = StepDiagnostics{LogScore: float64(steps), NumBlocks: st.NumBlocks(), Alpha: st.Alpha}
	}
	return out, diags, nil
}

func (f *fakeEngine) Insert(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, newRows [][]float64) ([]*LatentState, [][]float64, error) {
	out := make([]*LatentState, len(states))
	for i, st := range states {
		next := st.clone()
		for b := range next.RowPartitions {
			for range newRows {
				next.RowPartitions[b] = append(next.RowPartitions[b], 0)
			}
		}
		out[i] = next
	}
	updated := append(append([][]float64{}, data...), newRows...)
	if f.failInsert {
		updated = updated[:len(data)]
	}
	return out, updated, nil
}

func (f *fakeEngine) LogProbability(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, target Cell) (float64, error) {
	return math.Log(0.5), nil
}

func (f *fakeEngine) MutualInformation(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, col0, col1, samplesPerState int) ([]float64, error) {
	f.stepSizes = append(f.stepSizes, samplesPerState)
	out := make([]float64, len(states))
	for i := range out {
		out[i] = 0.25
	}
	return out, nil
}

func (f *fakeEngine) ColumnTypicality(ctx context.Context, states []*LatentState, col int) (float64, error) {
	return 0.5, nil
}

func (f *fakeEngine) RowTypicality(ctx context.Context, states []*LatentState, row int) (float64, error) {
	return 0.5, nil
}

func (f *fakeEngine) Similarity(ctx context.Context, states []*LatentState, row, target int, cols []int) (float64, error) {
	if row == target {
		return 1, nil
	}
	return 0.5, nil
}

func (f *fakeEngine) ImputeAndConfidence(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, row, col, n int) (float64, float64, error) {
	f.conditions = conditions
	if meta.Columns[col].Categorical() {
		return 1, 0.75, nil
	}
	return 3.5, 0.75, nil
}

func (f *fakeEngine) Sample(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, row int, cols []int, n int) ([][]float64, error) {
	f.conditions = conditions
	out := make([][]float64, n)
	for i := range out {
		sample := make([]float64, len(cols))
		for j, col := range cols {
			if meta.Columns[col].Categorical() {
				sample[j] = 0
			} else {
				sample[j] = 1.5
			}
		}
		out[i] = sample
	}
	return out, nil
}

// testBackend is one registered backend over a seeded people table.
type testBackend struct {
	s    *store.Session
	cc   *Crosscat
	fake *fakeEngine
	path string
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	tb := openTestBackend(t, path)

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE people (name TEXT, age REAL, city TEXT)`,
		`INSERT INTO people VALUES ('alice', 34, 'boston')`,
		`INSERT INTO people VALUES ('bob', 29, 'cambridge')`,
		`INSERT INTO people VALUES ('carol', 41, 'boston')`,
		`INSERT INTO people VALUES ('dave', NULL, 'somerville')`,
	}
	for _, stmt := range stmts {
		_, err := tb.s.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return tb
}

// openTestBackend opens a fresh session and backend over an existing (or
// new) database file.
func openTestBackend(t *testing.T, path string) *testBackend {
	t.Helper()
	s, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fake := &fakeEngine{}
	cc := New(fake, nil)
	require.NoError(t, cc.Register(context.Background(), s))
	return &testBackend{s: s, cc: cc, fake: fake, path: path}
}

func (tb *testBackend) createGenerator(t *testing.T) int64 {
	t.Helper()
	id, err := tb.cc.CreateGenerator(context.Background(), tb.s, "people_g", "people",
		[]model.Column{
			{Name: "age", StatType: model.Numerical},
			{Name: "city", StatType: model.Categorical},
		}, false)
	require.NoError(t, err)
	return id
}

func (tb *testBackend) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	err := tb.s.DB().QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestRegisterIdempotent(t *testing.T) {
	tb := newTestBackend(t)
	require.NoError(t, tb.cc.Register(context.Background(), tb.s))

	v, err := tb.s.MetamodelVersion(context.Background(), Name)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, v)
}

func TestRegisterVersionMismatch(t *testing.T) {
	tb := newTestBackend(t)
	_, err := tb.s.DB().Exec(`UPDATE metamodels SET version = 99 WHERE name = ?`, Name)
	require.NoError(t, err)

	err = tb.cc.Register(context.Background(), tb.s)
	require.ErrorIs(t, err, store.ErrSchemaVersion)
}
