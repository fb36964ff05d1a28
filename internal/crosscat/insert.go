package crosscat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gendb/internal/store"
)

// InsertMany appends full table rows to the generator's backing table and
// merges them into every existing model's latent state, all inside one
// transactional scope. Rows carry one value per table column in table
// order.
func (cc *Crosscat) InsertMany(ctx context.Context, s *store.Session, generatorID int64, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	table, err := s.GeneratorTable(ctx, generatorID)
	if err != nil {
		return err
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return err
	}

	var updated []*modelState
	var modelNos []int
	err = s.Savepoint(ctx, func() error {
		tableCols, err := s.TableColumnNames(ctx, table)
		if err != nil {
			return err
		}
		// Positions of the modeled columns within a full table row.
		modeled, err := s.GeneratorColumns(ctx, generatorID)
		if err != nil {
			return err
		}
		tableIdx := make(map[string]int, len(tableCols))
		for i, name := range tableCols {
			tableIdx[strings.ToLower(name)] = i
		}
		positions := make([]int, len(modeled))
		for i, nc := range modeled {
			pos, ok := tableIdx[strings.ToLower(nc.Name)]
			if !ok {
				return fmt.Errorf("table %q has no column %q: %w", table, nc.Name, store.ErrNotFound)
			}
			positions[i] = pos
		}

		// The pre-insert snapshot is taken before the table grows; the
		// engine's updated snapshot must equal it plus the encoded rows.
		data, err := cc.dataSnapshot(ctx, s, generatorID, md)
		if err != nil {
			return err
		}

		for _, row := range rows {
			if err := s.InsertTableRow(ctx, table, tableCols, row); err != nil {
				return fmt.Errorf("insert row: %w", err)
			}
		}

		encoded := make([][]float64, len(rows))
		for r, row := range rows {
			encoded[r] = make([]float64, len(modeled))
			for i, nc := range modeled {
				code, err := encodeValue(nc.StatType, md, i, row[positions[i]])
				if err != nil {
					return err
				}
				encoded[r][i] = code
			}
		}

		var states []*modelState
		modelNos, states, err = cc.models(ctx, s, generatorID, nil)
		if err != nil {
			return err
		}
		if len(states) == 0 {
			return nil
		}
		latents := make([]*LatentState, len(states))
		for i, ms := range states {
			latents[i] = ms.State
		}
		merged, newData, err := cc.engine.Insert(ctx, md, data, latents, encoded)
		if err != nil {
			return fmt.Errorf("engine insert: %w", err)
		}
		if len(merged) != len(states) {
			return fmt.Errorf("engine merged %d states for %d models", len(merged), len(states))
		}
		if !dataEqual(newData, append(data, encoded...)) {
			return fmt.Errorf("engine returned a data snapshot that is not the old snapshot plus the new rows")
		}

		updated = make([]*modelState, len(states))
		for i, ms := range states {
			next := ms.clone()
			next.State = merged[i]
			blob, err := next.encode()
			if err != nil {
				return err
			}
			if err := s.ExecOne(ctx,
				`UPDATE crosscat_models SET state_json = ? WHERE generator_id = ? AND modelno = ?`,
				blob, generatorID, modelNos[i]); err != nil {
				return fmt.Errorf("update state for model %d: %w", modelNos[i], err)
			}
			updated[i] = next
		}
		return nil
	})
	if err != nil {
		return err
	}

	c := cc.cache(s)
	for i, no := range modelNos {
		c.putModel(generatorID, no, updated[i])
	}
	cc.log.Debug("rows inserted",
		zap.Int64("generator", generatorID),
		zap.Int("rows", len(rows)),
		zap.Int("models", len(modelNos)))
	return nil
}
