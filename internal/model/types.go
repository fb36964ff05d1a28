// Package model defines the shared generator data types.
package model

import "time"

// StatType classifies a column for modeling purposes.
type StatType string

const (
	Categorical StatType = "categorical"
	Numerical   StatType = "numerical"
	Cyclic      StatType = "cyclic"
	Ignore      StatType = "ignore"
	Key         StatType = "key"
)

// ValidStatTypes are the recognized statistical types.
var ValidStatTypes = map[StatType]bool{
	Categorical: true,
	Numerical:   true,
	Cyclic:      true,
	Ignore:      true,
	Key:         true,
}

// Modeled reports whether columns of this type are sent to the backend.
func (st StatType) Modeled() bool {
	return st == Categorical || st == Numerical || st == Cyclic
}

// Column is one column of a generator schema: a name and its statistical type.
type Column struct {
	Name     string   `json:"name"`
	StatType StatType `json:"stattype"`
}

// NumberedColumn is a modeled column with its relational column number.
type NumberedColumn struct {
	ColNo    int      `json:"colno"`
	Name     string   `json:"name"`
	StatType StatType `json:"stattype"`
}

// Generator summarizes a generator record for catalog listings.
type Generator struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Table      string `json:"table"`
	Metamodel  string `json:"metamodel"`
	Models     int    `json:"models"`
	Iterations int64  `json:"iterations"`
}

// Config controls model initialization and the inference kernels used
// during analysis. All models analyzed together must share one kernel set.
type Config struct {
	Kernels           []string `json:"kernel_list"`
	Initialization    string   `json:"initialization"`
	RowInitialization string   `json:"row_initialization"`
}

// DefaultConfig is the unconstrained, prior-initialized configuration.
func DefaultConfig() Config {
	return Config{
		Initialization:    "from_the_prior",
		RowInitialization: "from_the_prior",
	}
}

// AnalyzeOptions bounds one analysis invocation. Zero values mean "unset":
// at least one of Iterations or MaxDuration must be given.
type AnalyzeOptions struct {
	Models          []int         // explicit model numbers; nil means all
	Iterations      int           // iteration budget
	MaxDuration     time.Duration // wall-clock budget
	CheckpointEvery int           // iterations between persisted checkpoints
}
