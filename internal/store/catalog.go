package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gendb/internal/model"
)

// MetamodelVersion returns the installed schema version for a backend name.
func (s *Session) MetamodelVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM metamodels WHERE name = ?`, name).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("metamodel %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// InsertMetamodel records an installed backend schema version.
func (s *Session) InsertMetamodel(ctx context.Context, name string, version int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metamodels (name, version) VALUES (?, ?)`, name, version)
	return err
}

// CreateGeneratorRecord allocates a generator id and records its modeled
// columns. Column numbers are the columns' positions in the backing table.
func (s *Session) CreateGeneratorRecord(ctx context.Context, name, table, metamodel string, columns []model.Column) (int64, []model.NumberedColumn, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generators WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return 0, nil, err
	}
	if exists > 0 {
		return 0, nil, fmt.Errorf("generator %q already exists: %w", name, ErrConflict)
	}

	tableCols, err := s.TableColumnNames(ctx, table)
	if err != nil {
		return 0, nil, err
	}
	colnoByName := make(map[string]int, len(tableCols))
	for i, cn := range tableCols {
		colnoByName[strings.ToLower(cn)] = i
	}

	numbered := make([]model.NumberedColumn, 0, len(columns))
	for _, c := range columns {
		colno, ok := colnoByName[strings.ToLower(c.Name)]
		if !ok {
			return 0, nil, fmt.Errorf("table %q has no column %q: %w", table, c.Name, ErrNotFound)
		}
		if !model.ValidStatTypes[c.StatType] {
			return 0, nil, fmt.Errorf("unknown statistical type %q for column %q", c.StatType, c.Name)
		}
		numbered = append(numbered, model.NumberedColumn{ColNo: colno, Name: c.Name, StatType: c.StatType})
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO generators (name, tabname, metamodel) VALUES (?, ?, ?)`,
		name, table, metamodel)
	if err != nil {
		return 0, nil, fmt.Errorf("insert generator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}
	for _, nc := range numbered {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO generator_columns (generator_id, colno, name, stattype)
			 VALUES (?, ?, ?, ?)`,
			id, nc.ColNo, nc.Name, string(nc.StatType))
		if err != nil {
			return 0, nil, fmt.Errorf("insert generator column %q: %w", nc.Name, err)
		}
	}
	return id, numbered, nil
}

// DropGeneratorRecord deletes the catalog rows for a generator.
func (s *Session) DropGeneratorRecord(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM generator_models WHERE generator_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM generator_columns WHERE generator_id = ?`, id); err != nil {
		return err
	}
	return s.ExecOne(ctx, `DELETE FROM generators WHERE id = ?`, id)
}

// GeneratorID resolves a generator name to its id.
func (s *Session) GeneratorID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM generators WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("generator %q: %w", name, ErrNotFound)
	}
	return id, err
}

// GeneratorName resolves a generator id to its name.
func (s *Session) GeneratorName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM generators WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return name, err
}

// GeneratorTable returns the backing table of a generator.
func (s *Session) GeneratorTable(ctx context.Context, id int64) (string, error) {
	var table string
	err := s.db.QueryRowContext(ctx,
		`SELECT tabname FROM generators WHERE id = ?`, id).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return table, err
}

// GeneratorBackend returns the metamodel name that owns a generator.
func (s *Session) GeneratorBackend(ctx context.Context, id int64) (string, error) {
	var mm string
	err := s.db.QueryRowContext(ctx,
		`SELECT metamodel FROM generators WHERE id = ?`, id).Scan(&mm)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return mm, err
}

// GeneratorColumns returns the modeled columns of a generator in column
// number order.
func (s *Session) GeneratorColumns(ctx context.Context, id int64) ([]model.NumberedColumn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT colno, name, stattype FROM generator_columns
		 WHERE generator_id = ? ORDER BY colno ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []model.NumberedColumn
	for rows.Next() {
		var nc model.NumberedColumn
		var st string
		if err := rows.Scan(&nc.ColNo, &nc.Name, &st); err != nil {
			return nil, err
		}
		nc.StatType = model.StatType(st)
		cols = append(cols, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("generator %d: %w", id, ErrNotFound)
	}
	return cols, nil
}

// GeneratorColumnNo resolves a modeled column name to its column number.
func (s *Session) GeneratorColumnNo(ctx context.Context, id int64, name string) (int, error) {
	var colno int
	err := s.db.QueryRowContext(ctx,
		`SELECT colno FROM generator_columns
		 WHERE generator_id = ? AND name = ? COLLATE NOCASE`, id, name).Scan(&colno)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("column %q not modeled in generator %d: %w", name, id, ErrNotFound)
	}
	return colno, err
}

// GeneratorColumn returns one modeled column by column number.
func (s *Session) GeneratorColumn(ctx context.Context, id int64, colno int) (model.NumberedColumn, error) {
	nc := model.NumberedColumn{ColNo: colno}
	var st string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, stattype FROM generator_columns
		 WHERE generator_id = ? AND colno = ?`, id, colno).Scan(&nc.Name, &st)
	if errors.Is(err, sql.ErrNoRows) {
		return nc, fmt.Errorf("column %d not modeled in generator %d: %w", colno, id, ErrNotFound)
	}
	nc.StatType = model.StatType(st)
	return nc, err
}

// RenameGeneratorColumn renames a modeled column in the catalog.
func (s *Session) RenameGeneratorColumn(ctx context.Context, id int64, oldName, newName string) error {
	return s.ExecOne(ctx,
		`UPDATE generator_columns SET name = ?
		 WHERE generator_id = ? AND name = ?`, newName, id, oldName)
}

// AddModelRecord creates the iteration counter row for a new model.
func (s *Session) AddModelRecord(ctx context.Context, id int64, modelNo int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generator_models (generator_id, modelno, iterations)
		 VALUES (?, ?, 0)`, id, modelNo)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("model %d of generator %d already exists: %w", modelNo, id, ErrConflict)
	}
	return err
}

// DropModelRecords deletes iteration counters for the given model numbers,
// or for all models when modelNos is nil.
func (s *Session) DropModelRecords(ctx context.Context, id int64, modelNos []int) error {
	if modelNos == nil {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM generator_models WHERE generator_id = ?`, id)
		return err
	}
	for _, no := range modelNos {
		if err := s.ExecOne(ctx,
			`DELETE FROM generator_models WHERE generator_id = ? AND modelno = ?`,
			id, no); err != nil {
			return fmt.Errorf("drop model %d: %w", no, err)
		}
	}
	return nil
}

// BumpModelIterations adds delta to a model's cumulative iteration counter.
func (s *Session) BumpModelIterations(ctx context.Context, id int64, modelNo, delta int) error {
	return s.ExecOne(ctx,
		`UPDATE generator_models SET iterations = iterations + ?
		 WHERE generator_id = ? AND modelno = ?`, delta, id, modelNo)
}

// ModelIterations returns a model's cumulative iteration counter.
func (s *Session) ModelIterations(ctx context.Context, id int64, modelNo int) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT iterations FROM generator_models
		 WHERE generator_id = ? AND modelno = ?`, id, modelNo).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("model %d of generator %d: %w", modelNo, id, ErrNotFound)
	}
	return n, err
}

// ListGenerators returns all generators with model counts and total
// iterations.
func (s *Session) ListGenerators(ctx context.Context) ([]model.Generator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.tabname, g.metamodel,
		       COUNT(m.modelno), COALESCE(SUM(m.iterations), 0)
		FROM generators g
		LEFT JOIN generator_models m ON m.generator_id = g.id
		GROUP BY g.id ORDER BY g.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []model.Generator
	for rows.Next() {
		var g model.Generator
		if err := rows.Scan(&g.ID, &g.Name, &g.Table, &g.Metamodel, &g.Models, &g.Iterations); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}
