package crosscat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"gendb/internal/guess"
	"gendb/internal/model"
	"gendb/internal/store"
)

// CreateGenerator builds the metadata for a generator over table, persists
// it, and mirrors the internal-index, model-type, and codemap information
// into the relational shadow. With guessTypes set, statistical types are
// inferred from the full column population (columns acting as overrides)
// and inferred key and ignore columns are excluded from the modeled set.
func (cc *Crosscat) CreateGenerator(ctx context.Context, s *store.Session, name, table string, columns []model.Column, guessTypes bool) (int64, error) {
	modeled := columns
	if guessTypes {
		var err error
		modeled, err = cc.guessColumns(ctx, s, table, columns)
		if err != nil {
			return 0, err
		}
	} else {
		for _, c := range columns {
			if !c.StatType.Modeled() {
				return 0, fmt.Errorf("column %q has unmodeled statistical type %q", c.Name, c.StatType)
			}
		}
	}
	if len(modeled) == 0 {
		return 0, fmt.Errorf("no modeled columns for generator %q over table %q", name, table)
	}

	var generatorID int64
	var md *Metadata
	err := s.Savepoint(ctx, func() error {
		id, numbered, err := s.CreateGeneratorRecord(ctx, name, table, Name, modeled)
		if err != nil {
			return err
		}
		generatorID = id

		// Internal indices follow relational column order, the same order
		// every later catalog read returns.
		sort.Slice(numbered, func(i, j int) bool { return numbered[i].ColNo < numbered[j].ColNo })

		md, err = cc.buildMetadata(ctx, s, table, numbered)
		if err != nil {
			return err
		}
		blob, err := md.Encode()
		if err != nil {
			return err
		}
		if _, err := s.DB().ExecContext(ctx,
			`INSERT INTO crosscat_metadata (generator_id, metadata_json) VALUES (?, ?)`,
			generatorID, blob); err != nil {
			return fmt.Errorf("insert metadata: %w", err)
		}

		// Relational shadow: one row per modeled column, one per code.
		for ccColNo, nc := range numbered {
			cm := md.Columns[ccColNo]
			if _, err := s.DB().ExecContext(ctx,
				`INSERT INTO crosscat_columns (generator_id, colno, cc_colno, disttype)
				 VALUES (?, ?, ?, ?)`,
				generatorID, nc.ColNo, ccColNo, cm.ModelType); err != nil {
				return fmt.Errorf("insert column shadow: %w", err)
			}
			for code, value := range cm.Values {
				if _, err := s.DB().ExecContext(ctx,
					`INSERT INTO crosscat_codemaps (generator_id, cc_colno, code, value)
					 VALUES (?, ?, ?, ?)`,
					generatorID, ccColNo, code, value); err != nil {
					return fmt.Errorf("insert codemap: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	cc.cache(s).metadata[generatorID] = md
	cc.log.Info("generator created",
		zap.String("generator", name),
		zap.Int64("id", generatorID),
		zap.Int("columns", md.NumColumns()))
	return generatorID, nil
}

// guessColumns infers statistical types over the table's full population.
func (cc *Crosscat) guessColumns(ctx context.Context, s *store.Session, table string, overrides []model.Column) ([]model.Column, error) {
	names, err := s.TableColumnNames(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := s.TableRows(ctx, table, names)
	if err != nil {
		return nil, err
	}
	over := make(map[string]model.StatType, len(overrides))
	for _, c := range overrides {
		over[c.Name] = c.StatType
	}
	stattypes, err := guess.StatTypes(names, rows, over)
	if err != nil {
		return nil, err
	}
	var modeled []model.Column
	for i, st := range stattypes {
		if st.Modeled() {
			modeled = append(modeled, model.Column{Name: names[i], StatType: st})
		}
	}
	return modeled, nil
}

// buildMetadata constructs the structural description for the modeled
// columns. Categorical codemaps enumerate the column's distinct observed
// values in sorted order; codes are stable from this point on.
func (cc *Crosscat) buildMetadata(ctx context.Context, s *store.Session, table string, numbered []model.NumberedColumn) (*Metadata, error) {
	md := &Metadata{
		Names:   make([]string, len(numbered)),
		Columns: make([]ColumnMeta, len(numbered)),
	}
	for i, nc := range numbered {
		md.Names[i] = nc.Name
		mt, err := cc.defaultModelType(ctx, s, nc.StatType)
		if err != nil {
			return nil, err
		}
		cm := ColumnMeta{ModelType: mt}
		if nc.StatType == model.Categorical {
			values, err := cc.distinctValues(ctx, s, table, nc.Name)
			if err != nil {
				return nil, err
			}
			cm.Values = values
		}
		md.Columns[i] = cm
	}
	md.index()
	return md, nil
}

// defaultModelType resolves a statistical type's default distribution
// family through the disttype registry.
func (cc *Crosscat) defaultModelType(ctx context.Context, s *store.Session, st model.StatType) (string, error) {
	var name string
	err := s.DB().QueryRowContext(ctx,
		`SELECT name FROM crosscat_disttype WHERE stattype = ? AND default_dist = 1`,
		string(st)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no distribution family for statistical type %q: %w", st, store.ErrNotFound)
	}
	return name, err
}

// distinctValues returns a column's observed non-null domain in sorted
// order.
func (cc *Crosscat) distinctValues(ctx context.Context, s *store.Session, table, column string) ([]string, error) {
	qc := store.QuoteIdent(column)
	rows, err := s.DB().QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
		qc, store.QuoteIdent(table), qc, qc))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values = append(values, valueString(v))
	}
	return values, rows.Err()
}

// DropGenerator deletes every persisted row scoped to the generator,
// backend tables and catalog alike, and evicts its cache entries.
func (cc *Crosscat) DropGenerator(ctx context.Context, s *store.Session, generatorID int64) error {
	name, err := s.GeneratorName(ctx, generatorID)
	if err != nil {
		return err
	}
	err = s.Savepoint(ctx, func() error {
		for _, stmt := range []string{
			`DELETE FROM crosscat_models WHERE generator_id = ?`,
			`DELETE FROM crosscat_codemaps WHERE generator_id = ?`,
			`DELETE FROM crosscat_columns WHERE generator_id = ?`,
			`DELETE FROM crosscat_metadata WHERE generator_id = ?`,
		} {
			if _, err := s.DB().ExecContext(ctx, stmt, generatorID); err != nil {
				return err
			}
		}
		return s.DropGeneratorRecord(ctx, generatorID)
	})
	if err != nil {
		return err
	}

	cc.cache(s).evictGenerator(generatorID)
	cc.log.Info("generator dropped", zap.String("generator", name), zap.Int64("id", generatorID))
	return nil
}

// RenameColumn moves a column name to a new one in the metadata and the
// catalog, keeping the cached metadata in lockstep with the store.
func (cc *Crosscat) RenameColumn(ctx context.Context, s *store.Session, generatorID int64, oldName, newName string) error {
	if oldName == newName {
		return fmt.Errorf("rename %q to itself: %w", oldName, store.ErrConflict)
	}
	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return err
	}
	// Rename a copy: the cached metadata must not change unless the store
	// write commits.
	renamed := md.clone()
	if err := renamed.Rename(oldName, newName); err != nil {
		return err
	}
	blob, err := renamed.Encode()
	if err != nil {
		return err
	}
	err = s.Savepoint(ctx, func() error {
		if err := s.ExecOne(ctx,
			`UPDATE crosscat_metadata SET metadata_json = ? WHERE generator_id = ?`,
			blob, generatorID); err != nil {
			return fmt.Errorf("update metadata: %w", err)
		}
		return s.RenameGeneratorColumn(ctx, generatorID, oldName, newName)
	})
	if err != nil {
		return err
	}

	cc.cache(s).metadata[generatorID] = renamed
	return nil
}

// InitializeModels allocates fresh latent state for each requested model
// number by sampling the engine's prior over the current data snapshot.
func (cc *Crosscat) InitializeModels(ctx context.Context, s *store.Session, generatorID int64, modelNos []int, cfg *model.Config) error {
	if len(modelNos) == 0 {
		return fmt.Errorf("no model numbers given")
	}
	if cfg == nil {
		def := model.DefaultConfig()
		cfg = &def
	}
	existing, err := cc.modelNumbers(ctx, s, generatorID)
	if err != nil {
		return err
	}
	taken := make(map[int]bool, len(existing))
	for _, no := range existing {
		taken[no] = true
	}
	for _, no := range modelNos {
		if no < 0 {
			return fmt.Errorf("model number %d is negative", no)
		}
		if taken[no] {
			return fmt.Errorf("model %d of generator %d already initialized: %w",
				no, generatorID, store.ErrConflict)
		}
	}

	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return err
	}
	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return err
	}
	latents, err := cc.engine.Initialize(ctx, md, data, len(modelNos),
		cfg.Initialization, cfg.RowInitialization)
	if err != nil {
		return fmt.Errorf("engine initialize: %w", err)
	}
	if len(latents) != len(modelNos) {
		return fmt.Errorf("engine initialized %d states for %d models", len(latents), len(modelNos))
	}

	states := make([]*modelState, len(modelNos))
	err = s.Savepoint(ctx, func() error {
		for i, no := range modelNos {
			ms := &modelState{State: latents[i], Config: *cfg}
			blob, err := ms.encode()
			if err != nil {
				return err
			}
			if err := s.AddModelRecord(ctx, generatorID, no); err != nil {
				return err
			}
			if _, err := s.DB().ExecContext(ctx,
				`INSERT INTO crosscat_models (generator_id, modelno, state_json)
				 VALUES (?, ?, ?)`,
				generatorID, no, blob); err != nil {
				return fmt.Errorf("insert model %d: %w", no, err)
			}
			states[i] = ms
		}
		return nil
	})
	if err != nil {
		return err
	}

	c := cc.cache(s)
	for i, no := range modelNos {
		c.putModel(generatorID, no, states[i])
	}
	cc.log.Info("models initialized",
		zap.Int64("generator", generatorID),
		zap.Ints("models", modelNos),
		zap.Int("rows", len(data)))
	return nil
}

// DropModels deletes the given models' state, or every model's when
// modelNos is nil, and evicts exactly the affected cache entries.
func (cc *Crosscat) DropModels(ctx context.Context, s *store.Session, generatorID int64, modelNos []int) error {
	err := s.Savepoint(ctx, func() error {
		if modelNos == nil {
			if _, err := s.DB().ExecContext(ctx,
				`DELETE FROM crosscat_models WHERE generator_id = ?`, generatorID); err != nil {
				return err
			}
			return s.DropModelRecords(ctx, generatorID, nil)
		}
		for _, no := range modelNos {
			if err := s.ExecOne(ctx,
				`DELETE FROM crosscat_models WHERE generator_id = ? AND modelno = ?`,
				generatorID, no); err != nil {
				return fmt.Errorf("model %d of generator %d: %w", no, generatorID, store.ErrNotFound)
			}
		}
		return s.DropModelRecords(ctx, generatorID, modelNos)
	})
	if err != nil {
		return err
	}

	c := cc.cache(s)
	if modelNos == nil {
		delete(c.models, generatorID)
	} else {
		for _, no := range modelNos {
			c.evictModel(generatorID, no)
		}
	}
	return nil
}
