package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"gendb/internal/crosscat"
)

// clusterWeights returns unnormalized cluster membership weights for a row
// within one block. Known rows weight their assigned cluster only;
// hypothetical rows weight clusters by size times the likelihood of any
// conditioning cells falling in the same block, with one extra slot for a
// fresh cluster.
func clusterWeights(meta *crosscat.Metadata, data [][]float64, st *crosscat.LatentState, block int, conditions []crosscat.Cell, row int) []float64 {
	part := st.RowPartitions[block]
	clusters := 0
	if len(part) > 0 {
		clusters = slices.Max(part) + 1
	}
	if row < len(part) {
		w := make([]float64, clusters+1)
		w[part[row]] = 1
		return w
	}
	w := make([]float64, clusters+1)
	for _, c := range part {
		w[c]++
	}
	w[clusters] = st.Alpha
	for _, cond := range conditions {
		if st.ColumnAssignments[cond.Col] != block || math.IsNaN(cond.Code) {
			continue
		}
		for k := 0; k < clusters; k++ {
			w[k] *= clusterDensity(meta, data, part, k, cond.Col, cond.Code)
		}
		w[clusters] *= priorDensity(meta, cond.Col, cond.Code)
	}
	return w
}

// clusterDensity is the smoothed empirical density of code for col among
// the cluster's observed members.
func clusterDensity(meta *crosscat.Metadata, data [][]float64, part []int, cluster, col int, code float64) float64 {
	if math.IsNaN(code) {
		return 1
	}
	if meta.Columns[col].Categorical() {
		k := len(meta.Columns[col].Values)
		matches, n := 0, 0
		for r := 0; r < len(part) && r < len(data); r++ {
			if part[r] != cluster {
				continue
			}
			v := data[r][col]
			if math.IsNaN(v) {
				continue
			}
			n++
			if int(v) == int(code) {
				matches++
			}
		}
		return float64(matches+1) / float64(n+k)
	}
	var members []int
	for r := 0; r < len(part) && r < len(data); r++ {
		if part[r] == cluster {
			members = append(members, r)
		}
	}
	mean, variance, n := moments(data, members, col)
	if n == 0 {
		return priorDensity(meta, col, code)
	}
	return normalPDF(code, mean, variance+varianceFloor)
}

// priorDensity is the density of code under an empty cluster: uniform over
// the codemap for categoricals, standard normal otherwise.
func priorDensity(meta *crosscat.Metadata, col int, code float64) float64 {
	if math.IsNaN(code) {
		return 1
	}
	if meta.Columns[col].Categorical() {
		return 1 / float64(len(meta.Columns[col].Values))
	}
	return normalPDF(code, 0, 1)
}

func normalPDF(x, mean, variance float64) float64 {
	d := x - mean
	return math.Exp(-d*d/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}

// cellProbability is the probability of the target cell under one state,
// marginalized over cluster membership.
func cellProbability(meta *crosscat.Metadata, data [][]float64, st *crosscat.LatentState, conditions []crosscat.Cell, target crosscat.Cell) float64 {
	block := st.ColumnAssignments[target.Col]
	part := st.RowPartitions[block]
	w := clusterWeights(meta, data, st, block, conditions, target.Row)
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total == 0 {
		return priorDensity(meta, target.Col, target.Code)
	}
	p := 0.0
	for k, v := range w {
		if v == 0 {
			continue
		}
		var d float64
		if k == len(w)-1 {
			d = priorDensity(meta, target.Col, target.Code)
		} else {
			d = clusterDensity(meta, data, part, k, target.Col, target.Code)
		}
		p += v / total * d
	}
	return p
}

// LogProbability implements crosscat.Engine.
func (e *Local) LogProbability(ctx context.Context, meta *crosscat.Metadata, data [][]float64, states []*crosscat.LatentState, conditions []crosscat.Cell, target crosscat.Cell) (float64, error) {
	if len(states) == 0 {
		return 0, fmt.Errorf("no states")
	}
	if target.Col < 0 || target.Col >= meta.NumColumns() {
		return 0, fmt.Errorf("column %d out of range", target.Col)
	}
	p := 0.0
	for _, st := range states {
		p += cellProbability(meta, data, st, conditions, target)
	}
	return math.Log(p / float64(len(states))), nil
}

// Sample implements crosscat.Engine. Columns sharing a block share the
// cluster choice within each draw.
func (e *Local) Sample(ctx context.Context, meta *crosscat.Metadata, data [][]float64, states []*crosscat.LatentState, conditions []crosscat.Cell, row int, cols []int, n int) ([][]float64, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("no states")
	}
	for _, col := range cols {
		if col < 0 || col >= meta.NumColumns() {
			return nil, fmt.Errorf("column %d out of range", col)
		}
	}
	samples := make([][]float64, n)
	for i := 0; i < n; i++ {
		st := states[e.rng.Intn(len(states))]
		chosen := make(map[int]int)
		sample := make([]float64, len(cols))
		for j, col := range cols {
			block := st.ColumnAssignments[col]
			cluster, ok := chosen[block]
			if !ok {
				cluster = e.sampleCluster(clusterWeights(meta, data, st, block, conditions, row))
				chosen[block] = cluster
			}
			sample[j] = e.sampleValue(meta, data, st.RowPartitions[block], cluster, col)
		}
		samples[i] = sample
	}
	return samples, nil
}

func (e *Local) sampleCluster(w []float64) int {
	total := 0.0
	for _, v := range w {
		total += v
	}
	if total == 0 {
		return len(w) - 1
	}
	draw := e.rng.Float64() * total
	for k, v := range w {
		draw -= v
		if draw < 0 {
			return k
		}
	}
	return len(w) - 1
}

// sampleValue draws one code for col from the cluster's smoothed empirical
// distribution. The cluster index one past the last existing cluster means
// a fresh cluster and draws from the prior.
func (e *Local) sampleValue(meta *crosscat.Metadata, data [][]float64, part []int, cluster, col int) float64 {
	if meta.Columns[col].Categorical() {
		k := len(meta.Columns[col].Values)
		counts := make([]float64, k)
		n := 0.0
		for r := 0; r < len(part) && r < len(data); r++ {
			if part[r] != cluster {
				continue
			}
			v := data[r][col]
			if math.IsNaN(v) {
				continue
			}
			counts[int(v)]++
			n++
		}
		draw := e.rng.Float64() * (n + float64(k))
		for code := 0; code < k; code++ {
			draw -= counts[code] + 1
			if draw < 0 {
				return float64(code)
			}
		}
		return float64(k - 1)
	}
	var members []int
	for r := 0; r < len(part) && r < len(data); r++ {
		if part[r] == cluster {
			members = append(members, r)
		}
	}
	mean, variance, n := moments(data, members, col)
	if n == 0 {
		return e.rng.NormFloat64()
	}
	return mean + math.Sqrt(variance+varianceFloor)*e.rng.NormFloat64()
}

// ImputeAndConfidence implements crosscat.Engine: the modal sampled code
// with its frequency for categoricals, the sample mean with a
// dispersion-based confidence otherwise.
func (e *Local) ImputeAndConfidence(ctx context.Context, meta *crosscat.Metadata, data [][]float64, states []*crosscat.LatentState, conditions []crosscat.Cell, row, col, n int) (float64, float64, error) {
	if n <= 0 {
		return 0, 0, fmt.Errorf("sample count %d must be positive", n)
	}
	samples, err := e.Sample(ctx, meta, data, states, conditions, row, []int{col}, n)
	if err != nil {
		return 0, 0, err
	}
	if meta.Columns[col].Categorical() {
		counts := make(map[int]int)
		for _, s := range samples {
			counts[int(s[0])]++
		}
		best, bestCount := 0, -1
		for code, c := range counts {
			if c > bestCount || (c == bestCount && code < best) {
				best, bestCount = code, c
			}
		}
		return float64(best), float64(bestCount) / float64(n), nil
	}
	sum := 0.0
	for _, s := range samples {
		sum += s[0]
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, s := range samples {
		ss += (s[0] - mean) * (s[0] - mean)
	}
	sd := math.Sqrt(ss / float64(n))
	return mean, 1 / (1 + sd), nil
}

// MutualInformation implements crosscat.Engine: a plug-in estimate from
// joint samples, one per state. Columns in different blocks are independent
// under a state and contribute zero.
func (e *Local) MutualInformation(ctx context.Context, meta *crosscat.Metadata, data [][]float64, states []*crosscat.LatentState, col0, col1, samplesPerState int) ([]float64, error) {
	if samplesPerState <= 0 {
		return nil, fmt.Errorf("sample count %d must be positive", samplesPerState)
	}
	for _, col := range []int{col0, col1} {
		if col < 0 || col >= meta.NumColumns() {
			return nil, fmt.Errorf("column %d out of range", col)
		}
	}
	out := make([]float64, len(states))
	for i, st := range states {
		if st.ColumnAssignments[col0] != st.ColumnAssignments[col1] {
			continue
		}
		samples, err := e.Sample(ctx, meta, data, []*crosscat.LatentState{st}, nil, st.NumRows(), []int{col0, col1}, samplesPerState)
		if err != nil {
			return nil, err
		}
		pairs := make([][2]int, len(samples))
		for j, s := range samples {
			pairs[j] = [2]int{
				discretize(meta, data, col0, s[0]),
				discretize(meta, data, col1, s[1]),
			}
		}
		out[i] = pairMutualInformation(pairs)
	}
	return out, nil
}

// discretize maps a sampled code to a bin: categorical codes are their own
// bins, numeric values split at the column's observed median.
func discretize(meta *crosscat.Metadata, data [][]float64, col int, code float64) int {
	if meta.Columns[col].Categorical() {
		return int(code)
	}
	var values []float64
	for _, row := range data {
		if !math.IsNaN(row[col]) {
			values = append(values, row[col])
		}
	}
	median := 0.0
	if len(values) > 0 {
		sort.Float64s(values)
		median = values[len(values)/2]
	}
	if code < median {
		return 0
	}
	return 1
}

func pairMutualInformation(pairs [][2]int) float64 {
	n := float64(len(pairs))
	joint := make(map[[2]int]float64)
	mx := make(map[int]float64)
	my := make(map[int]float64)
	for _, p := range pairs {
		joint[p]++
		mx[p[0]]++
		my[p[1]]++
	}
	mi := 0.0
	for p, c := range joint {
		pxy := c / n
		mi += pxy * math.Log(pxy*n*n/(mx[p[0]]*my[p[1]]))
	}
	if mi < 0 {
		return 0
	}
	return mi
}

// ColumnTypicality implements crosscat.Engine: the mean fraction of other
// columns sharing the column's block.
func (e *Local) ColumnTypicality(ctx context.Context, states []*crosscat.LatentState, col int) (float64, error) {
	if len(states) == 0 {
		return 0, fmt.Errorf("no states")
	}
	total := 0.0
	for _, st := range states {
		if col < 0 || col >= len(st.ColumnAssignments) {
			return 0, fmt.Errorf("column %d out of range", col)
		}
		n := len(st.ColumnAssignments)
		if n < 2 {
			continue
		}
		same := 0
		for c, b := range st.ColumnAssignments {
			if c != col && b == st.ColumnAssignments[col] {
				same++
			}
		}
		total += float64(same) / float64(n-1)
	}
	return total / float64(len(states)), nil
}

// RowTypicality implements crosscat.Engine: the mean, over states and
// blocks, of the fraction of other rows sharing the row's cluster.
func (e *Local) RowTypicality(ctx context.Context, states []*crosscat.LatentState, row int) (float64, error) {
	if len(states) == 0 {
		return 0, fmt.Errorf("no states")
	}
	total := 0.0
	for _, st := range states {
		if row < 0 || row >= st.NumRows() {
			return 0, fmt.Errorf("row %d out of range", row)
		}
		if st.NumRows() < 2 {
			continue
		}
		perBlock := 0.0
		for _, part := range st.RowPartitions {
			same := 0
			for r, c := range part {
				if r != row && c == part[row] {
					same++
				}
			}
			perBlock += float64(same) / float64(len(part)-1)
		}
		total += perBlock / float64(st.NumBlocks())
	}
	return total / float64(len(states)), nil
}

// Similarity implements crosscat.Engine: the mean, over states and the
// given columns, of whether the two rows share the column's cluster. Nil
// cols means every column.
func (e *Local) Similarity(ctx context.Context, states []*crosscat.LatentState, row, target int, cols []int) (float64, error) {
	if len(states) == 0 {
		return 0, fmt.Errorf("no states")
	}
	total := 0.0
	for _, st := range states {
		if row < 0 || row >= st.NumRows() || target < 0 || target >= st.NumRows() {
			return 0, fmt.Errorf("row pair (%d, %d) out of range", row, target)
		}
		use := cols
		if len(use) == 0 {
			use = make([]int, len(st.ColumnAssignments))
			for i := range use {
				use[i] = i
			}
		}
		same := 0
		for _, col := range use {
			if col < 0 || col >= len(st.ColumnAssignments) {
				return 0, fmt.Errorf("column %d out of range", col)
			}
			part := st.RowPartitions[st.ColumnAssignments[col]]
			if part[row] == part[target] {
				same++
			}
		}
		total += float64(same) / float64(len(use))
	}
	return total / float64(len(states)), nil
}
