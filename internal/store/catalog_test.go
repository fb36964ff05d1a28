package store

import (
	"context"
	"errors"
	"testing"

	"gendb/internal/model"
)

// seedCatalog registers a backend and creates a people table with a few
// rows.
func seedCatalog(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	if err := s.InsertMetamodel(ctx, "stub", 1); err != nil {
		t.Fatalf("insert metamodel: %v", err)
	}
	stmts := []string{
		`CREATE TABLE people (name TEXT, age REAL, city TEXT)`,
		`INSERT INTO people VALUES ('alice', 34, 'boston')`,
		`INSERT INTO people VALUES ('bob', 29, 'cambridge')`,
		`INSERT INTO people VALUES ('carol', 41, 'boston')`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB().Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func createTestGenerator(t *testing.T, s *Session) int64 {
	t.Helper()
	id, _, err := s.CreateGeneratorRecord(context.Background(), "people_g", "people", "stub",
		[]model.Column{
			{Name: "age", StatType: model.Numerical},
			{Name: "city", StatType: model.Categorical},
		})
	if err != nil {
		t.Fatalf("create generator: %v", err)
	}
	return id
}

func TestCreateGeneratorRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)

	id, numbered, err := s.CreateGeneratorRecord(ctx, "people_g", "people", "stub",
		[]model.Column{
			{Name: "city", StatType: model.Categorical},
			{Name: "age", StatType: model.Numerical},
		})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Error("expected nonzero id")
	}
	// Column numbers come from table position, not argument order.
	if numbered[0].ColNo != 2 || numbered[1].ColNo != 1 {
		t.Errorf("unexpected colnos: %+v", numbered)
	}

	if _, _, err := s.CreateGeneratorRecord(ctx, "people_g", "people", "stub", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate name, got %v", err)
	}
	if _, _, err := s.CreateGeneratorRecord(ctx, "bad", "people", "stub",
		[]model.Column{{Name: "nope", StatType: model.Numerical}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown column, got %v", err)
	}
}

func TestGeneratorLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)
	id := createTestGenerator(t, s)

	gotID, err := s.GeneratorID(ctx, "people_g")
	if err != nil || gotID != id {
		t.Errorf("GeneratorID: got %d, %v", gotID, err)
	}
	if name, _ := s.GeneratorName(ctx, id); name != "people_g" {
		t.Errorf("GeneratorName: got %q", name)
	}
	if table, _ := s.GeneratorTable(ctx, id); table != "people" {
		t.Errorf("GeneratorTable: got %q", table)
	}
	if mm, _ := s.GeneratorBackend(ctx, id); mm != "stub" {
		t.Errorf("GeneratorBackend: got %q", mm)
	}
	if _, err := s.GeneratorID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cols, err := s.GeneratorColumns(ctx, id)
	if err != nil {
		t.Fatalf("GeneratorColumns: %v", err)
	}
	if len(cols) != 2 || cols[0].Name != "age" || cols[1].Name != "city" {
		t.Errorf("unexpected columns: %+v", cols)
	}

	// Name resolution is case-insensitive.
	colno, err := s.GeneratorColumnNo(ctx, id, "CITY")
	if err != nil || colno != 2 {
		t.Errorf("GeneratorColumnNo: got %d, %v", colno, err)
	}
	nc, err := s.GeneratorColumn(ctx, id, 1)
	if err != nil || nc.Name != "age" || nc.StatType != model.Numerical {
		t.Errorf("GeneratorColumn: got %+v, %v", nc, err)
	}
}

func TestRenameGeneratorColumn(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)
	id := createTestGenerator(t, s)

	if err := s.RenameGeneratorColumn(ctx, id, "city", "location"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := s.GeneratorColumnNo(ctx, id, "location"); err != nil {
		t.Errorf("new name not resolvable: %v", err)
	}
	if _, err := s.GeneratorColumnNo(ctx, id, "city"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old name still resolvable: %v", err)
	}
	if err := s.RenameGeneratorColumn(ctx, id, "city", "elsewhere"); err == nil {
		t.Error("expected error renaming a missing column")
	}
}

func TestModelRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)
	id := createTestGenerator(t, s)

	if err := s.AddModelRecord(ctx, id, 0); err != nil {
		t.Fatalf("add model: %v", err)
	}
	if err := s.AddModelRecord(ctx, id, 0); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate model, got %v", err)
	}

	if err := s.BumpModelIterations(ctx, id, 0, 7); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if err := s.BumpModelIterations(ctx, id, 0, 3); err != nil {
		t.Fatalf("bump: %v", err)
	}
	n, err := s.ModelIterations(ctx, id, 0)
	if err != nil || n != 10 {
		t.Errorf("iterations: got %d, %v", n, err)
	}

	if err := s.DropModelRecords(ctx, id, []int{0}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := s.ModelIterations(ctx, id, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after drop, got %v", err)
	}
	if err := s.DropModelRecords(ctx, id, []int{0}); err == nil {
		t.Error("expected error dropping a missing model")
	}
}

func TestListGenerators(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)
	id := createTestGenerator(t, s)

	s.AddModelRecord(ctx, id, 0)
	s.AddModelRecord(ctx, id, 1)
	s.BumpModelIterations(ctx, id, 0, 5)
	s.BumpModelIterations(ctx, id, 1, 2)

	gens, err := s.ListGenerators(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(gens) != 1 {
		t.Fatalf("expected 1 generator, got %d", len(gens))
	}
	g := gens[0]
	if g.Name != "people_g" || g.Models != 2 || g.Iterations != 7 {
		t.Errorf("unexpected listing: %+v", g)
	}
}

func TestTableAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	seedCatalog(t, s)

	names, err := s.TableColumnNames(ctx, "people")
	if err != nil {
		t.Fatalf("column names: %v", err)
	}
	if len(names) != 3 || names[0] != "name" {
		t.Errorf("unexpected names: %v", names)
	}
	if _, err := s.TableColumnNames(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rows, err := s.TableRows(ctx, "people", []string{"city", "age"})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "boston" {
		t.Errorf("expected string scan, got %T %v", rows[0][0], rows[0][0])
	}

	vals, err := s.TableRowValues(ctx, "people", []string{"name"}, 2)
	if err != nil || vals[0] != "bob" {
		t.Errorf("row values: got %v, %v", vals, err)
	}
	if _, err := s.TableRowValues(ctx, "people", []string{"name"}, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	max, err := s.MaxTableRowID(ctx, "people")
	if err != nil || max != 3 {
		t.Errorf("max rowid: got %d, %v", max, err)
	}

	if err := s.InsertTableRow(ctx, "people", names, []any{"dave", 55.0, "somerville"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if max, _ := s.MaxTableRowID(ctx, "people"); max != 4 {
		t.Errorf("max rowid after insert: got %d", max)
	}
	if err := s.InsertTableRow(ctx, "people", names, []any{"short"}); err == nil {
		t.Error("expected error for wrong row length")
	}
}
