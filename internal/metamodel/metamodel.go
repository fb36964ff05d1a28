// Package metamodel defines the capability contract generative-model
// backends implement, and a name-keyed registry of installed backends.
//
// A backend owns the persisted latent state for the generators it models.
// Every mutating operation runs inside a transactional scope acquired from
// the session, and a backend's session cache is updated only after the
// scope's store writes succeed. Query operations are pure reads.
package metamodel

import (
	"context"

	"gendb/internal/model"
	"gendb/internal/store"
)

// Constraint fixes a column to a value when simulating.
type Constraint struct {
	ColNo int
	Value any
}

// Metamodel is the operation set every backend implements. Generator and
// model addressing, error kinds, and the cache discipline are shared;
// everything behind the interface (latent state shape, inference procedure)
// is backend-owned.
type Metamodel interface {
	// Name identifies the backend in the registry and the catalog.
	Name() string

	// Register idempotently installs the backend's persisted schema. It
	// fails with store.ErrSchemaVersion if an incompatible version is
	// already installed.
	Register(ctx context.Context, s *store.Session) error

	// CreateGenerator builds and persists a generator over table. When
	// guessTypes is set, statistical types are inferred from the full
	// column population (with columns as overrides) and inferred key and
	// ignore columns are excluded from the modeled set.
	CreateGenerator(ctx context.Context, s *store.Session, name, table string, columns []model.Column, guessTypes bool) (int64, error)

	// DropGenerator deletes every persisted row scoped to the generator
	// and evicts its cache entries. All-or-nothing.
	DropGenerator(ctx context.Context, s *store.Session, generatorID int64) error

	// RenameColumn renames a modeled column. Fails if oldName is not
	// modeled or newName is already in use.
	RenameColumn(ctx context.Context, s *store.Session, generatorID int64, oldName, newName string) error

	// InitializeModels allocates fresh latent state for each requested
	// model number from the generator's current data snapshot. A nil
	// config means the default prior-based configuration. Fails if any
	// requested number already has state.
	InitializeModels(ctx context.Context, s *store.Session, generatorID int64, modelNos []int, cfg *model.Config) error

	// AnalyzeModels runs checkpointed inference under the given budgets.
	AnalyzeModels(ctx context.Context, s *store.Session, generatorID int64, opts model.AnalyzeOptions) error

	// DropModels deletes the given models' state, or all models' state
	// when modelNos is nil, and evicts exactly the affected cache entries.
	DropModels(ctx context.Context, s *store.Session, generatorID int64, modelNos []int) error

	// InsertMany appends rows to the backing table and incrementally
	// updates every existing model, in one transactional scope.
	InsertMany(ctx context.Context, s *store.Session, generatorID int64, rows [][]any) error

	// ColumnDependenceProbability estimates the probability that two
	// columns are dependent. NaN if the generator has no models.
	ColumnDependenceProbability(ctx context.Context, s *store.Session, generatorID int64, colNo0, colNo1 int) (float64, error)

	// ColumnMutualInformation is a Monte-Carlo estimate averaged over
	// models; numSamples <= 0 selects the backend default.
	ColumnMutualInformation(ctx context.Context, s *store.Session, generatorID int64, colNo0, colNo1, numSamples int) (float64, error)

	// ColumnTypicality is a structural-typicality statistic for a column.
	ColumnTypicality(ctx context.Context, s *store.Session, generatorID int64, colNo int) (float64, error)

	// ColumnValueProbability is the probability of observing value in the
	// column at a fresh row. A value outside the column's domain yields 0,
	// not an error.
	ColumnValueProbability(ctx context.Context, s *store.Session, generatorID int64, colNo int, value any) (float64, error)

	// RowSimilarity compares two existing rows on the given columns.
	RowSimilarity(ctx context.Context, s *store.Session, generatorID int64, rowID, targetRowID int64, colNos []int) (float64, error)

	// RowTypicality is a structural-typicality statistic for a row.
	RowTypicality(ctx context.Context, s *store.Session, generatorID int64, rowID int64) (float64, error)

	// RowColumnPredictiveProbability evaluates the row's stored value for
	// the column under the models. Fails if the row does not exist.
	RowColumnPredictiveProbability(ctx context.Context, s *store.Session, generatorID int64, rowID int64, colNo int) (float64, error)

	// InferConfidence imputes the column at a row from the row's other
	// observed values, returning the most representative decoded value and
	// a backend-defined confidence.
	InferConfidence(ctx context.Context, s *store.Session, generatorID int64, colNo int, rowID int64, numSamples int) (any, float64, error)

	// Simulate draws numPredictions joint samples of the given columns
	// subject to the constraints, decoded to domain values.
	Simulate(ctx context.Context, s *store.Session, generatorID int64, constraints []Constraint, colNos []int, numPredictions int) ([][]any, error)
}
