package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// TableColumnNames returns the column names of a table in declaration order.
func (s *Session) TableColumnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`PRAGMA table_info(%s)`, QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, ErrNotFound)
	}
	return names, nil
}

// TableRows returns the given columns of every row of a table in rowid
// order. Values are nil, int64, float64, or string.
func (s *Session) TableRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY _rowid_ ASC`,
		strings.Join(quoted, ", "), QuoteIdent(table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = normalizeValue(vals[i])
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// TableRowValues returns the given columns of one row, addressed by its
// 1-based external row id.
func (s *Session) TableRowValues(ctx context.Context, table string, columns []string, rowID int64) ([]any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE _rowid_ = ?`,
		strings.Join(quoted, ", "), QuoteIdent(table))
	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err := s.db.QueryRowContext(ctx, query, rowID).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("row %d of table %q: %w", rowID, table, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	for i := range vals {
		vals[i] = normalizeValue(vals[i])
	}
	return vals, nil
}

// MaxTableRowID returns the largest external row id, or 0 for an empty
// table.
func (s *Session) MaxTableRowID(ctx context.Context, table string) (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT MAX(_rowid_) FROM %s`, QuoteIdent(table))).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max.Int64, nil
}

// InsertTableRow appends one full row to a table.
func (s *Session) InsertTableRow(ctx context.Context, table string, columns []string, values []any) error {
	if len(values) != len(columns) {
		return fmt.Errorf("wrong row length: expected %d, got %d", len(columns), len(values))
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		marks[i] = "?"
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	_, err := s.db.ExecContext(ctx, query, values...)
	return err
}

// normalizeValue maps driver-returned []byte to string so callers see a
// uniform nil/int64/float64/string set.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
