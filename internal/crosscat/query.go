package crosscat

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gendb/internal/metamodel"
	"gendb/internal/model"
	"gendb/internal/store"
)

// defaultMISamples is the sample budget when the caller gives none.
const defaultMISamples = 100

// ColumnDependenceProbability is the fraction of models in which the two
// columns share a block whose rows fall into more than one cluster. Always
// 1 for a column against itself; NaN when the generator has no models.
func (cc *Crosscat) ColumnDependenceProbability(ctx context.Context, s *store.Session, generatorID int64, colNo0, colNo1 int) (float64, error) {
	if colNo0 == colNo1 {
		return 1, nil
	}
	cc0, err := cc.internalColNo(ctx, s, generatorID, colNo0)
	if err != nil {
		return 0, err
	}
	cc1, err := cc.internalColNo(ctx, s, generatorID, colNo1)
	if err != nil {
		return 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	if len(states) == 0 {
		return math.NaN(), nil
	}
	count := 0
	for _, st := range states {
		block := st.ColumnAssignments[cc0]
		if block != st.ColumnAssignments[cc1] {
			continue
		}
		if !st.BlockClustered(block) {
			continue
		}
		count++
	}
	return float64(count) / float64(len(states)), nil
}

// ColumnMutualInformation is a Monte-Carlo estimate averaged over models,
// with the sample budget split evenly across them.
func (cc *Crosscat) ColumnMutualInformation(ctx context.Context, s *store.Session, generatorID int64, colNo0, colNo1, numSamples int) (float64, error) {
	if numSamples <= 0 {
		numSamples = defaultMISamples
	}
	cc0, err := cc.internalColNo(ctx, s, generatorID, colNo0)
	if err != nil {
		return 0, err
	}
	cc1, err := cc.internalColNo(ctx, s, generatorID, colNo1)
	if err != nil {
		return 0, err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	if len(states) == 0 {
		return 0, fmt.Errorf("no models for generator %d: %w", generatorID, store.ErrNotFound)
	}
	perState := int(math.Ceil(float64(numSamples) / float64(len(states))))
	estimates, err := cc.engine.MutualInformation(ctx, md, data, states, cc0, cc1, perState)
	if err != nil {
		return 0, fmt.Errorf("engine mutual information: %w", err)
	}
	sum := 0.0
	for _, e := range estimates {
		sum += e
	}
	return sum / float64(len(estimates)), nil
}

// ColumnTypicality is the column's structural typicality across models.
func (cc *Crosscat) ColumnTypicality(ctx context.Context, s *store.Session, generatorID int64, colNo int) (float64, error) {
	ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
	if err != nil {
		return 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	return cc.engine.ColumnTypicality(ctx, states, ccColNo)
}

// RowTypicality is the row's structural typicality across models.
func (cc *Crosscat) RowTypicality(ctx context.Context, s *store.Session, generatorID int64, rowID int64) (float64, error) {
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	return cc.engine.RowTypicality(ctx, states, internalRow(rowID))
}

// ColumnValueProbability is the probability of observing value in the
// column at a synthetic, otherwise-empty row. A value outside the codemap
// yields probability 0, not an error.
func (cc *Crosscat) ColumnValueProbability(ctx context.Context, s *store.Session, generatorID int64, colNo int, value any) (float64, error) {
	nc, err := s.GeneratorColumn(ctx, generatorID, colNo)
	if err != nil {
		return 0, err
	}
	ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
	if err != nil {
		return 0, err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	code, err := encodeValue(nc.StatType, md, ccColNo, value)
	if errors.Is(err, errUnknownValue) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	if len(states) == 0 {
		return 0, fmt.Errorf("no models for generator %d: %w", generatorID, store.ErrNotFound)
	}
	logp, err := cc.engine.LogProbability(ctx, md, data, states, nil,
		Cell{Row: len(data), Col: ccColNo, Code: code})
	if err != nil {
		return 0, fmt.Errorf("engine probability: %w", err)
	}
	return math.Exp(logp), nil
}

// RowSimilarity compares two existing rows restricted to the given columns.
func (cc *Crosscat) RowSimilarity(ctx context.Context, s *store.Session, generatorID int64, rowID, targetRowID int64, colNos []int) (float64, error) {
	ccCols := make([]int, len(colNos))
	for i, colNo := range colNos {
		ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
		if err != nil {
			return 0, err
		}
		ccCols[i] = ccColNo
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	return cc.engine.Similarity(ctx, states, internalRow(rowID), internalRow(targetRowID), ccCols)
}

// RowColumnPredictiveProbability evaluates the row's stored value for the
// column under the models, given no other constraints.
func (cc *Crosscat) RowColumnPredictiveProbability(ctx context.Context, s *store.Session, generatorID int64, rowID int64, colNo int) (float64, error) {
	nc, err := s.GeneratorColumn(ctx, generatorID, colNo)
	if err != nil {
		return 0, err
	}
	table, err := s.GeneratorTable(ctx, generatorID)
	if err != nil {
		return 0, err
	}
	vals, err := s.TableRowValues(ctx, table, []string{nc.Name}, rowID)
	if err != nil {
		return 0, err
	}
	ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
	if err != nil {
		return 0, err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	code, err := encodeValue(nc.StatType, md, ccColNo, vals[0])
	if err != nil {
		return 0, err
	}
	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return 0, err
	}
	if len(states) == 0 {
		return 0, fmt.Errorf("no models for generator %d: %w", generatorID, store.ErrNotFound)
	}
	logp, err := cc.engine.LogProbability(ctx, md, data, states, nil,
		Cell{Row: internalRow(rowID), Col: ccColNo, Code: code})
	if err != nil {
		return 0, fmt.Errorf("engine probability: %w", err)
	}
	return math.Exp(logp), nil
}

// InferConfidence imputes the column at a row, constraining on every other
// modeled column's observed value there, and returns the most
// representative decoded value with the engine's confidence score.
func (cc *Crosscat) InferConfidence(ctx context.Context, s *store.Session, generatorID int64, colNo int, rowID int64, numSamples int) (any, float64, error) {
	if numSamples <= 0 {
		numSamples = 1
	}
	nc, err := s.GeneratorColumn(ctx, generatorID, colNo)
	if err != nil {
		return nil, 0, err
	}
	table, err := s.GeneratorTable(ctx, generatorID)
	if err != nil {
		return nil, 0, err
	}
	modeled, err := s.GeneratorColumns(ctx, generatorID)
	if err != nil {
		return nil, 0, err
	}
	names := make([]string, len(modeled))
	for i, c := range modeled {
		names[i] = c.Name
	}
	row, err := s.TableRowValues(ctx, table, names, rowID)
	if err != nil {
		return nil, 0, err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return nil, 0, err
	}
	ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
	if err != nil {
		return nil, 0, err
	}

	intRow := internalRow(rowID)
	var conditions []Cell
	for i, c := range modeled {
		if i == ccColNo || row[i] == nil {
			continue
		}
		code, err := encodeValue(c.StatType, md, i, row[i])
		if err != nil {
			return nil, 0, err
		}
		conditions = append(conditions, Cell{Row: intRow, Col: i, Code: code})
	}

	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return nil, 0, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return nil, 0, err
	}
	if len(states) == 0 {
		return nil, 0, fmt.Errorf("no models for generator %d: %w", generatorID, store.ErrNotFound)
	}
	code, confidence, err := cc.engine.ImputeAndConfidence(ctx, md, data, states,
		conditions, intRow, ccColNo, numSamples)
	if err != nil {
		return nil, 0, fmt.Errorf("engine impute: %w", err)
	}
	value, err := decodeValue(nc.StatType, md, ccColNo, code)
	if err != nil {
		return nil, 0, err
	}
	return value, confidence, nil
}

// Simulate draws numPredictions joint samples of the given columns at a
// synthetic row one past the current maximum row id, subject to the
// constraints, and decodes each sample.
func (cc *Crosscat) Simulate(ctx context.Context, s *store.Session, generatorID int64, constraints []metamodel.Constraint, colNos []int, numPredictions int) ([][]any, error) {
	if numPredictions <= 0 {
		numPredictions = 1
	}
	table, err := s.GeneratorTable(ctx, generatorID)
	if err != nil {
		return nil, err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return nil, err
	}
	maxRowID, err := s.MaxTableRowID(ctx, table)
	if err != nil {
		return nil, err
	}
	fakeRow := internalRow(maxRowID + 1)

	var conditions []Cell
	for _, con := range constraints {
		nc, err := s.GeneratorColumn(ctx, generatorID, con.ColNo)
		if err != nil {
			return nil, err
		}
		ccColNo, err := cc.internalColNo(ctx, s, generatorID, con.ColNo)
		if err != nil {
			return nil, err
		}
		code, err := encodeValue(nc.StatType, md, ccColNo, con.Value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, Cell{Row: fakeRow, Col: ccColNo, Code: code})
	}

	queryCols := make([]int, len(colNos))
	queryTypes := make([]model.StatType, len(colNos))
	for i, colNo := range colNos {
		nc, err := s.GeneratorColumn(ctx, generatorID, colNo)
		if err != nil {
			return nil, err
		}
		ccColNo, err := cc.internalColNo(ctx, s, generatorID, colNo)
		if err != nil {
			return nil, err
		}
		queryCols[i] = ccColNo
		queryTypes[i] = nc.StatType
	}

	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return nil, err
	}
	states, err := cc.latentStates(ctx, s, generatorID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("no models for generator %d: %w", generatorID, store.ErrNotFound)
	}
	samples, err := cc.engine.Sample(ctx, md, data, states, conditions, fakeRow, queryCols, numPredictions)
	if err != nil {
		return nil, fmt.Errorf("engine sample: %w", err)
	}

	out := make([][]any, len(samples))
	for r, sample := range samples {
		if len(sample) != len(colNos) {
			return nil, fmt.Errorf("engine returned %d values for %d columns", len(sample), len(colNos))
		}
		out[r] = make([]any, len(colNos))
		for i := range colNos {
			value, err := decodeValue(queryTypes[i], md, queryCols[i], sample[i])
			if err != nil {
				return nil, err
			}
			out[r][i] = value
		}
	}
	return out, nil
}
