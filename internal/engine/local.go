// Package engine provides a small in-process implementation of the
// crosscat inference contract: initialization draws partitions from a CRP
// prior, steps are stochastic local moves scored by an empirical
// cluster-likelihood, and the query primitives compute smoothed empirical
// estimates from the cluster assignments. It lets the full stack run
// without an external inference service; it makes no claim to posterior
// correctness.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gendb/internal/crosscat"
)

// Kernel names accepted in a model's kernel list. An empty list runs all.
const (
	KernelColumnPartition = "column_partition_assignments"
	KernelRowPartition    = "row_partition_assignments"
	KernelHyperparameter  = "column_partition_hyperparameter"
)

const varianceFloor = 1e-6

// Local is the in-process engine. Not safe for concurrent use.
type Local struct {
	rng *rand.Rand
}

var _ crosscat.Engine = (*Local)(nil)

// NewLocal returns an engine seeded for reproducible runs.
func NewLocal(seed int64) *Local {
	return &Local{rng: rand.New(rand.NewSource(seed))}
}

// crp draws a sequential Chinese-restaurant-process partition of n items.
func (e *Local) crp(n int, alpha float64) []int {
	assignment := make([]int, n)
	var counts []int
	for i := 0; i < n; i++ {
		total := float64(i) + alpha
		draw := e.rng.Float64() * total
		placed := false
		for k, c := range counts {
			draw -= float64(c)
			if draw < 0 {
				assignment[i] = k
				counts[k]++
				placed = true
				break
			}
		}
		if !placed {
			assignment[i] = len(counts)
			counts = append(counts, 1)
		}
	}
	return assignment
}

func (e *Local) partition(n int, mode string, alpha float64) ([]int, error) {
	switch mode {
	case "", "from_the_prior":
		return e.crp(n, alpha), nil
	case "together":
		return make([]int, n), nil
	case "apart":
		p := make([]int, n)
		for i := range p {
			p[i] = i
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown initialization mode %q", mode)
	}
}

// Initialize implements crosscat.Engine.
func (e *Local) Initialize(ctx context.Context, meta *crosscat.Metadata, data [][]float64, chains int, initialization, rowInitialization string) ([]*crosscat.LatentState, error) {
	nCols := meta.NumColumns()
	if nCols == 0 {
		return nil, fmt.Errorf("no columns to model")
	}
	states := make([]*crosscat.LatentState, chains)
	for i := range states {
		alpha := 1.0
		cols, err := e.partition(nCols, initialization, alpha)
		if err != nil {
			return nil, err
		}
		blocks := slices.Max(cols) + 1
		st := &crosscat.LatentState{
			ColumnAssignments: cols,
			RowPartitions:     make([][]int, blocks),
			Alpha:             alpha,
		}
		for b := 0; b < blocks; b++ {
			rows, err := e.partition(len(data), rowInitialization, 1.0)
			if err != nil {
				return nil, err
			}
			st.RowPartitions[b] = rows
		}
		states[i] = st
	}
	return states, nil
}

// Step implements crosscat.Engine: per state, steps sweeps of stochastic
// local moves, each kept when it improves the empirical score and
// occasionally otherwise.
func (e *Local) Step(ctx context.Context, meta *crosscat.Metadata, data [][]float64, kernels []string, states []*crosscat.LatentState, steps int) ([]*crosscat.LatentState, []crosscat.StepDiagnostics, error) {
	if steps <= 0 {
		return nil, nil, fmt.Errorf("step count %d must be positive", steps)
	}
	out := make([]*crosscat.LatentState, len(states))
	diags := make([]crosscat.StepDiagnostics, len(states))
	for i, st := range states {
		next := cloneState(st)
		for iter := 0; iter < steps; iter++ {
			if kernelEnabled(kernels, KernelColumnPartition) {
				e.moveColumn(meta, data, next)
			}
			if kernelEnabled(kernels, KernelRowPartition) {
				e.moveRow(meta, data, next)
			}
			if kernelEnabled(kernels, KernelHyperparameter) {
				next.Alpha *= math.Exp(e.rng.NormFloat64() * 0.1)
			}
		}
		out[i] = next
		diags[i] = crosscat.StepDiagnostics{
			LogScore:  e.score(meta, data, next),
			NumBlocks: next.NumBlocks(),
			Alpha:     next.Alpha,
		}
	}
	return out, diags, nil
}

func kernelEnabled(kernels []string, name string) bool {
	return len(kernels) == 0 || slices.Contains(kernels, name)
}

// moveColumn proposes reassigning one column to another (or a new) block.
func (e *Local) moveColumn(meta *crosscat.Metadata, data [][]float64, st *crosscat.LatentState) {
	nCols := len(st.ColumnAssignments)
	if nCols < 2 {
		return
	}
	col := e.rng.Intn(nCols)
	before := e.score(meta, data, st)
	oldBlock := st.ColumnAssignments[col]

	target := e.rng.Intn(st.NumBlocks() + 1)
	if target == oldBlock {
		return
	}
	if target == st.NumBlocks() {
		// Fresh singleton block; its rows start as one cluster.
		st.RowPartitions = append(st.RowPartitions, make([]int, len(data)))
	}
	st.ColumnAssignments[col] = target
	compactBlocks(st)
	if e.score(meta, data, st) < before && e.rng.Float64() > 0.25 {
		st.ColumnAssignments[col] = oldBlock
		compactBlocks(st)
	}
}

// moveRow proposes reassigning one row to another (or a new) cluster within
// one block.
func (e *Local) moveRow(meta *crosscat.Metadata, data [][]float64, st *crosscat.LatentState) {
	if len(data) < 2 || st.NumBlocks() == 0 {
		return
	}
	block := e.rng.Intn(st.NumBlocks())
	part := st.RowPartitions[block]
	row := e.rng.Intn(len(part))
	before := e.score(meta, data, st)
	old := part[row]

	clusters := slices.Max(part) + 1
	target := e.rng.Intn(clusters + 1)
	if target == old {
		return
	}
	part[row] = target
	compactClusters(part)
	if e.score(meta, data, st) < before && e.rng.Float64() > 0.25 {
		part[row] = old
		compactClusters(part)
	}
}

// compactBlocks renumbers blocks densely after a column move and keeps
// RowPartitions aligned.
func compactBlocks(st *crosscat.LatentState) {
	used := make(map[int]bool)
	for _, b := range st.ColumnAssignments {
		used[b] = true
	}
	remap := make(map[int]int, len(used))
	var parts [][]int
	for b := 0; b < len(st.RowPartitions); b++ {
		if !used[b] {
			continue
		}
		remap[b] = len(parts)
		parts = append(parts, st.RowPartitions[b])
	}
	for i, b := range st.ColumnAssignments {
		st.ColumnAssignments[i] = remap[b]
	}
	st.RowPartitions = parts
}

// compactClusters renumbers a row partition densely.
func compactClusters(part []int) {
	remap := make(map[int]int)
	for i, c := range part {
		n, ok := remap[c]
		if !ok {
			n = len(remap)
			remap[c] = n
		}
		part[i] = n
	}
}

// Insert implements crosscat.Engine: each new row joins an existing
// cluster with probability proportional to its size, or a new one.
func (e *Local) Insert(ctx context.Context, meta *crosscat.Metadata, data [][]float64, states []*crosscat.LatentState, newRows [][]float64) ([]*crosscat.LatentState, [][]float64, error) {
	out := make([]*crosscat.LatentState, len(states))
	for i, st := range states {
		next := cloneState(st)
		for b := range next.RowPartitions {
			part := next.RowPartitions[b]
			for range newRows {
				part = append(part, e.sampleClusterBySize(part))
			}
			next.RowPartitions[b] = part
		}
		out[i] = next
	}
	updated := make([][]float64, 0, len(data)+len(newRows))
	updated = append(updated, data...)
	updated = append(updated, newRows...)
	return out, updated, nil
}

func (e *Local) sampleClusterBySize(part []int) int {
	if len(part) == 0 {
		return 0
	}
	clusters := slices.Max(part) + 1
	counts := make([]int, clusters)
	for _, c := range part {
		counts[c]++
	}
	draw := e.rng.Float64() * float64(len(part)+1)
	for k, c := range counts {
		draw -= float64(c)
		if draw < 0 {
			return k
		}
	}
	return clusters
}

// score is the empirical log-likelihood of the data under the clustering,
// lightly penalized by structure size.
func (e *Local) score(meta *crosscat.Metadata, data [][]float64, st *crosscat.LatentState) float64 {
	total := 0.0
	structure := st.NumBlocks()
	for b := range st.RowPartitions {
		part := st.RowPartitions[b]
		clusters := clusterMembers(part)
		structure += len(clusters)
		for col, block := range st.ColumnAssignments {
			if block != b {
				continue
			}
			for _, members := range clusters {
				total += clusterLogLikelihood(meta, data, members, col)
			}
		}
	}
	return total - float64(structure)
}

func clusterMembers(part []int) map[int][]int {
	members := make(map[int][]int)
	for row, c := range part {
		members[c] = append(members[c], row)
	}
	return members
}

func clusterLogLikelihood(meta *crosscat.Metadata, data [][]float64, members []int, col int) float64 {
	if meta.Columns[col].Categorical() {
		counts := make(map[int]int)
		n := 0
		for _, r := range members {
			v := data[r][col]
			if math.IsNaN(v) {
				continue
			}
			counts[int(v)]++
			n++
		}
		if n == 0 {
			return 0
		}
		ll := 0.0
		for _, c := range counts {
			ll += float64(c) * (math.Log(float64(c)) - math.Log(float64(n)))
		}
		return ll
	}
	_, variance, n := moments(data, members, col)
	if n == 0 {
		return 0
	}
	return -0.5 * float64(n) * math.Log(2*math.Pi*math.E*(variance+varianceFloor))
}

func moments(data [][]float64, members []int, col int) (mean, variance float64, n int) {
	sum := 0.0
	for _, r := range members {
		v := data[r][col]
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	ss := 0.0
	for _, r := range members {
		v := data[r][col]
		if math.IsNaN(v) {
			continue
		}
		ss += (v - mean) * (v - mean)
	}
	variance = ss / float64(n)
	return mean, variance, n
}

func cloneState(st *crosscat.LatentState) *crosscat.LatentState {
	out := &crosscat.LatentState{
		ColumnAssignments: append([]int(nil), st.ColumnAssignments...),
		RowPartitions:     make([][]int, len(st.RowPartitions)),
		Alpha:             st.Alpha,
	}
	for i, p := range st.RowPartitions {
		out.RowPartitions[i] = append([]int(nil), p...)
	}
	return out
}
