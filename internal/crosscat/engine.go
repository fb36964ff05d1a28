package crosscat

import "context"

// LatentState is one posterior sample of the Crosscat structure: a
// partition of columns into blocks, and within each block a clustering of
// the rows. Internal 0-based column and row ids throughout.
type LatentState struct {
	// ColumnAssignments maps each internal column index to its block.
	ColumnAssignments []int `json:"column_assignments"`

	// RowPartitions maps each block to its row clustering: RowPartitions[b][r]
	// is the cluster of row r within block b.
	RowPartitions [][]int `json:"row_partitions"`

	// Alpha is the concentration of the column partition.
	Alpha float64 `json:"alpha"`
}

// NumBlocks returns the number of column blocks.
func (st *LatentState) NumBlocks() int {
	return len(st.RowPartitions)
}

// NumRows returns the number of rows covered by the clustering.
func (st *LatentState) NumRows() int {
	if len(st.RowPartitions) == 0 {
		return 0
	}
	return len(st.RowPartitions[0])
}

// BlockClustered reports whether a block's rows fall into more than one
// cluster.
func (st *LatentState) BlockClustered(block int) bool {
	if block >= len(st.RowPartitions) {
		return false
	}
	seen := -1
	for _, c := range st.RowPartitions[block] {
		if seen == -1 {
			seen = c
			continue
		}
		if c != seen {
			return true
		}
	}
	return false
}

func (st *LatentState) clone() *LatentState {
	out := &LatentState{
		ColumnAssignments: append([]int(nil), st.ColumnAssignments...),
		RowPartitions:     make([][]int, len(st.RowPartitions)),
		Alpha:             st.Alpha,
	}
	for i, p := range st.RowPartitions {
		out.RowPartitions[i] = append([]int(nil), p...)
	}
	return out
}

// StepDiagnostics are the scalars an engine reports after a step call,
// recorded once per checkpoint.
type StepDiagnostics struct {
	LogScore  float64
	NumBlocks int
	Alpha     float64
}

// Cell addresses one encoded value: internal row id, internal column index,
// and the code.
type Cell struct {
	Row  int
	Col  int
	Code float64
}

// Engine is the inference collaborator the backend drives. Implementations
// own the numerics; this package owns persistence, caching, budgets, and
// value encoding. Data snapshots are row-major encoded values in internal
// column order. Engine calls have no timeout: a hung call blocks the caller.
type Engine interface {
	// Initialize draws chains fresh latent states over the data snapshot.
	Initialize(ctx context.Context, meta *Metadata, data [][]float64, chains int, initialization, rowInitialization string) ([]*LatentState, error)

	// Step advances every state by steps sweeps of the given kernels and
	// reports per-state diagnostics. All states step under one kernel set.
	Step(ctx context.Context, meta *Metadata, data [][]float64, kernels []string, states []*LatentState, steps int) ([]*LatentState, []StepDiagnostics, error)

	// Insert merges newRows into every state and returns the updated
	// states plus the updated data snapshot, which must equal data
	// concatenated with newRows.
	Insert(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, newRows [][]float64) ([]*LatentState, [][]float64, error)

	// LogProbability is the log probability of target given conditions,
	// averaged over states.
	LogProbability(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, target Cell) (float64, error)

	// MutualInformation estimates the mutual information of two columns,
	// one estimate per state, from samplesPerState samples each.
	MutualInformation(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, col0, col1, samplesPerState int) ([]float64, error)

	// ColumnTypicality is the structural typicality of a column.
	ColumnTypicality(ctx context.Context, states []*LatentState, col int) (float64, error)

	// RowTypicality is the structural typicality of a row.
	RowTypicality(ctx context.Context, states []*LatentState, row int) (float64, error)

	// Similarity compares two rows restricted to the given columns.
	Similarity(ctx context.Context, states []*LatentState, row, target int, cols []int) (float64, error)

	// ImputeAndConfidence draws n samples of col at row given conditions
	// and returns the most representative code with a confidence score.
	ImputeAndConfidence(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, row, col, n int) (float64, float64, error)

	// Sample draws n joint samples of cols at row given conditions.
	Sample(ctx context.Context, meta *Metadata, data [][]float64, states []*LatentState, conditions []Cell, row int, cols []int, n int) ([][]float64, error)
}
