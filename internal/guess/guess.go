// Package guess infers statistical types for table columns from their
// observed values.
package guess

import (
	"fmt"
	"strconv"
	"strings"

	"gendb/internal/model"
)

const (
	// Columns with at most this many distinct values are categorical.
	maxCategoricalCount = 20

	// As are columns whose distinct-to-observed ratio stays under this.
	maxCategoricalRatio = 0.02

	// Columns where at least this fraction of observed values parse as
	// numbers are numerical.
	minNumericalRatio = 0.9
)

// StatTypes guesses a statistical type for each named column from the rows'
// values. Overrides, keyed by column name, win unconditionally. At most one
// column becomes the key: the first one whose observed values are all
// distinct. Columns with no observed values are ignored.
func StatTypes(names []string, rows [][]any, overrides map[string]model.StatType) ([]model.StatType, error) {
	for name, st := range overrides {
		if !contains(names, name) {
			return nil, fmt.Errorf("override for unknown column %q", name)
		}
		if _, ok := model.ValidStatTypes[st]; !ok {
			return nil, fmt.Errorf("override for column %q has unknown statistical type %q", name, st)
		}
	}

	out := make([]model.StatType, len(names))
	haveKey := false
	for i, name := range names {
		if st, ok := overrides[name]; ok {
			out[i] = st
			if st == model.Key {
				haveKey = true
			}
			continue
		}
		st := guessColumn(column(rows, i), !haveKey)
		if st == model.Key {
			haveKey = true
		}
		out[i] = st
	}
	return out, nil
}

func guessColumn(values []string, keyEligible bool) model.StatType {
	observed := 0
	distinct := make(map[string]bool)
	numeric := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		observed++
		distinct[v] = true
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			numeric++
		}
	}
	if observed == 0 {
		return model.Ignore
	}
	if keyEligible && len(distinct) == observed && observed == len(values) {
		return model.Key
	}
	if len(distinct) <= maxCategoricalCount ||
		float64(len(distinct))/float64(observed) < maxCategoricalRatio {
		return model.Categorical
	}
	if float64(numeric)/float64(observed) >= minNumericalRatio {
		return model.Numerical
	}
	return model.Ignore
}

// column renders one column's values as strings, with nulls as "".
func column(rows [][]any, i int) []string {
	out := make([]string, len(rows))
	for r, row := range rows {
		if i >= len(row) || row[i] == nil {
			continue
		}
		switch v := row[i].(type) {
		case string:
			out[r] = v
		case []byte:
			out[r] = string(v)
		case float64:
			out[r] = strconv.FormatFloat(v, 'g', -1, 64)
		case int64:
			out[r] = strconv.FormatInt(v, 10)
		default:
			out[r] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
