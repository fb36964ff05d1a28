package crosscat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"gendb/internal/store"
)

// internalRow maps a 1-based external row id to the engine's 0-based space.
func internalRow(rowID int64) int {
	return int(rowID - 1)
}

// metadata reads a generator's metadata through the session cache.
func (cc *Crosscat) metadata(ctx context.Context, s *store.Session, generatorID int64) (*Metadata, error) {
	c := cc.cache(s)
	if md, ok := c.metadata[generatorID]; ok {
		return md, nil
	}
	var blob []byte
	err := s.DB().QueryRowContext(ctx,
		`SELECT metadata_json FROM crosscat_metadata WHERE generator_id = ?`,
		generatorID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no crosscat metadata for generator %d: %w", generatorID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	md, err := ParseMetadata(blob)
	if err != nil {
		return nil, err
	}
	c.metadata[generatorID] = md
	return md, nil
}

// model reads one model's state through the session cache.
func (cc *Crosscat) model(ctx context.Context, s *store.Session, generatorID int64, modelNo int) (*modelState, error) {
	c := cc.cache(s)
	if byNo, ok := c.models[generatorID]; ok {
		if ms, ok := byNo[modelNo]; ok {
			return ms, nil
		}
	}
	var blob []byte
	err := s.DB().QueryRowContext(ctx,
		`SELECT state_json FROM crosscat_models WHERE generator_id = ? AND modelno = ?`,
		generatorID, modelNo).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no crosscat model %d for generator %d: %w", modelNo, generatorID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ms, err := parseModelState(blob)
	if err != nil {
		return nil, err
	}
	c.putModel(generatorID, modelNo, ms)
	return ms, nil
}

// modelNumbers lists a generator's model numbers in ascending order.
func (cc *Crosscat) modelNumbers(ctx context.Context, s *store.Session, generatorID int64) ([]int, error) {
	rows, err := s.DB().QueryContext(ctx,
		`SELECT modelno FROM crosscat_models WHERE generator_id = ?`, generatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nos []int
	for rows.Next() {
		var no int
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		nos = append(nos, no)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Ints(nos)
	return nos, nil
}

// models reads the states of the given model numbers, or of every model
// when modelNos is nil, in ascending model order.
func (cc *Crosscat) models(ctx context.Context, s *store.Session, generatorID int64, modelNos []int) ([]int, []*modelState, error) {
	if modelNos == nil {
		var err error
		modelNos, err = cc.modelNumbers(ctx, s, generatorID)
		if err != nil {
			return nil, nil, err
		}
	}
	states := make([]*modelState, len(modelNos))
	for i, no := range modelNos {
		ms, err := cc.model(ctx, s, generatorID, no)
		if err != nil {
			return nil, nil, err
		}
		states[i] = ms
	}
	return modelNos, states, nil
}

// latentStates returns every model's latent state in model order.
func (cc *Crosscat) latentStates(ctx context.Context, s *store.Session, generatorID int64) ([]*LatentState, error) {
	_, states, err := cc.models(ctx, s, generatorID, nil)
	if err != nil {
		return nil, err
	}
	latents := make([]*LatentState, len(states))
	for i, ms := range states {
		latents[i] = ms.State
	}
	return latents, nil
}

// internalColNo maps a relational column number to the backend's internal
// index via the column shadow.
func (cc *Crosscat) internalColNo(ctx context.Context, s *store.Session, generatorID int64, colNo int) (int, error) {
	var ccColNo int
	err := s.DB().QueryRowContext(ctx,
		`SELECT cc_colno FROM crosscat_columns WHERE generator_id = ? AND colno = ?`,
		generatorID, colNo).Scan(&ccColNo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("column %d not crosscat-modeled in generator %d: %w",
			colNo, generatorID, store.ErrNotFound)
	}
	return ccColNo, err
}

// externalColNo maps an internal index back to the relational column number.
func (cc *Crosscat) externalColNo(ctx context.Context, s *store.Session, generatorID int64, ccColNo int) (int, error) {
	var colNo int
	err := s.DB().QueryRowContext(ctx,
		`SELECT colno FROM crosscat_columns WHERE generator_id = ? AND cc_colno = ?`,
		generatorID, ccColNo).Scan(&colNo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("internal column %d unknown in generator %d: %w",
			ccColNo, generatorID, store.ErrNotFound)
	}
	return colNo, err
}

// dataSnapshot reads the generator's modeled columns for every table row
// and encodes them, row-major in internal column order.
func (cc *Crosscat) dataSnapshot(ctx context.Context, s *store.Session, generatorID int64, md *Metadata) ([][]float64, error) {
	table, err := s.GeneratorTable(ctx, generatorID)
	if err != nil {
		return nil, err
	}
	cols, err := s.GeneratorColumns(ctx, generatorID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	rows, err := s.TableRows(ctx, table, names)
	if err != nil {
		return nil, err
	}
	data := make([][]float64, len(rows))
	for r, row := range rows {
		data[r] = make([]float64, len(cols))
		for i, c := range cols {
			code, err := encodeValue(c.StatType, md, i, row[i])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r+1, err)
			}
			data[r][i] = code
		}
	}
	return data, nil
}

// dataEqual compares two snapshots treating NaN codes as equal.
func dataEqual(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			x, y := a[i][j], b[i][j]
			if math.IsNaN(x) && math.IsNaN(y) {
				continue
			}
			if x != y {
				return false
			}
		}
	}
	return true
}
