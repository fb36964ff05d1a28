package crosscat

import (
	"encoding/json"
	"fmt"

	"gendb/internal/store"
)

// Backend model types, one default per statistical type.
const (
	ModelTypeNormal    = "normal_inverse_gamma"
	ModelTypeDirichlet = "symmetric_dirichlet_discrete"
	ModelTypeVonMises  = "vonmises"
)

// ColumnMeta is the backend-side description of one modeled column.
type ColumnMeta struct {
	// ModelType names the distribution family modeling the column.
	ModelType string `json:"modeltype"`

	// Values is the categorical codemap: Values[code] is the domain value.
	// Codes are stable for the generator's lifetime; renumbering would
	// invalidate all persisted model state. Empty for non-categorical
	// columns.
	Values []string `json:"values,omitempty"`
}

// Categorical reports whether the column is modeled as categorical.
func (cm *ColumnMeta) Categorical() bool {
	return cm.ModelType == ModelTypeDirichlet
}

// Metadata is the generator-scoped structural description: the map between
// column names and dense 0-based internal indices, and per-index model types
// and codemaps. Internal indices are a permutation of 0..n-1 by
// construction.
type Metadata struct {
	// Names maps internal index to column name.
	Names []string `json:"names"`

	// Columns maps internal index to its model description.
	Columns []ColumnMeta `json:"column_metadata"`

	nameToIdx map[string]int
	codes     []map[string]int
}

// NumColumns returns the number of modeled columns.
func (m *Metadata) NumColumns() int {
	return len(m.Names)
}

// Index resolves a column name to its internal index.
func (m *Metadata) Index(name string) (int, bool) {
	idx, ok := m.nameToIdx[name]
	return idx, ok
}

// Code resolves a categorical value to its code.
func (m *Metadata) Code(idx int, value string) (int, bool) {
	code, ok := m.codes[idx][value]
	return code, ok
}

// Rename moves oldName's internal index to newName.
func (m *Metadata) Rename(oldName, newName string) error {
	idx, ok := m.nameToIdx[oldName]
	if !ok {
		return fmt.Errorf("column %q not in metadata: %w", oldName, store.ErrNotFound)
	}
	if _, ok := m.nameToIdx[newName]; ok {
		return fmt.Errorf("column %q already in metadata: %w", newName, store.ErrConflict)
	}
	delete(m.nameToIdx, oldName)
	m.nameToIdx[newName] = idx
	m.Names[idx] = newName
	return nil
}

func (m *Metadata) clone() *Metadata {
	out := &Metadata{
		Names:   append([]string(nil), m.Names...),
		Columns: make([]ColumnMeta, len(m.Columns)),
	}
	for i, cm := range m.Columns {
		out.Columns[i] = ColumnMeta{
			ModelType: cm.ModelType,
			Values:    append([]string(nil), cm.Values...),
		}
	}
	out.index()
	return out
}

// index rebuilds the derived name and codemap lookups.
func (m *Metadata) index() {
	m.nameToIdx = make(map[string]int, len(m.Names))
	for i, name := range m.Names {
		m.nameToIdx[name] = i
	}
	m.codes = make([]map[string]int, len(m.Columns))
	for i, cm := range m.Columns {
		m.codes[i] = make(map[string]int, len(cm.Values))
		for code, value := range cm.Values {
			m.codes[i][value] = code
		}
	}
}

// Encode serializes the metadata for the persisted blob.
func (m *Metadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMetadata deserializes a persisted metadata blob.
func ParseMetadata(blob []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if len(m.Names) != len(m.Columns) {
		return nil, fmt.Errorf("parse metadata: %d names for %d columns", len(m.Names), len(m.Columns))
	}
	m.index()
	return &m, nil
}
