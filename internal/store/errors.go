package store

import "errors"

// Error kinds surfaced by the session and by backends. Callers distinguish
// them with errors.Is; the wrapped message carries the specifics.
var (
	// ErrNotFound reports an unknown generator, model, row, or unmodeled
	// column.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a duplicate generator or model, a rename to an
	// occupied name, or re-initialization of an existing model.
	ErrConflict = errors.New("conflict")

	// ErrSchemaVersion reports registration against an incompatible
	// installed backend schema.
	ErrSchemaVersion = errors.New("incompatible schema version")
)
