package store

// catalogSchema holds the backend-agnostic tables: registered metamodels,
// generators, their modeled columns, and per-model iteration counters.
// Backend-specific tables (metadata blobs, codemaps, latent state) are owned
// and installed by each backend through its Register operation.
const catalogSchema = `
CREATE TABLE IF NOT EXISTS metamodels (
	name    TEXT NOT NULL PRIMARY KEY,
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS generators (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL UNIQUE,
	tabname   TEXT NOT NULL,
	metamodel TEXT NOT NULL REFERENCES metamodels(name)
);

CREATE TABLE IF NOT EXISTS generator_columns (
	generator_id INTEGER NOT NULL REFERENCES generators(id),
	colno        INTEGER NOT NULL CHECK (0 <= colno),
	name         TEXT NOT NULL,
	stattype     TEXT NOT NULL,
	PRIMARY KEY (generator_id, colno),
	UNIQUE (generator_id, name)
);

CREATE TABLE IF NOT EXISTS generator_models (
	generator_id INTEGER NOT NULL REFERENCES generators(id),
	modelno      INTEGER NOT NULL CHECK (0 <= modelno),
	iterations   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (generator_id, modelno)
);
`

func (s *Session) migrate() error {
	_, err := s.db.Exec(catalogSchema)
	return err
}
