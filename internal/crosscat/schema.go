package crosscat

// schemaVersion is the persisted schema version this backend installs and
// accepts.
const schemaVersion = 1

// schemaSQL holds the crosscat-owned tables. The metadata blob is the
// authoritative structural description; crosscat_columns and
// crosscat_codemaps mirror it relationally for column-level joins. Latent
// state is an opaque JSON blob whose internal schema the backend owns.
const schemaSQL = `
CREATE TABLE crosscat_disttype (
	name         TEXT NOT NULL PRIMARY KEY,
	stattype     TEXT NOT NULL,
	default_dist BOOLEAN NOT NULL,
	UNIQUE (stattype, default_dist)
);

INSERT INTO crosscat_disttype (name, stattype, default_dist) VALUES
	('normal_inverse_gamma', 'numerical', 1),
	('symmetric_dirichlet_discrete', 'categorical', 1),
	('vonmises', 'cyclic', 1);

CREATE TABLE crosscat_metadata (
	generator_id  INTEGER NOT NULL PRIMARY KEY REFERENCES generators(id),
	metadata_json BLOB NOT NULL
);

CREATE TABLE crosscat_columns (
	generator_id INTEGER NOT NULL REFERENCES generators(id),
	colno        INTEGER NOT NULL CHECK (0 <= colno),
	cc_colno     INTEGER NOT NULL CHECK (0 <= cc_colno),
	disttype     TEXT NOT NULL,
	PRIMARY KEY (generator_id, colno),
	UNIQUE (generator_id, cc_colno)
);

CREATE TABLE crosscat_codemaps (
	generator_id INTEGER NOT NULL REFERENCES generators(id),
	cc_colno     INTEGER NOT NULL CHECK (0 <= cc_colno),
	code         INTEGER NOT NULL,
	value        TEXT NOT NULL,
	UNIQUE (generator_id, cc_colno, code),
	UNIQUE (generator_id, cc_colno, value)
);

CREATE TABLE crosscat_models (
	generator_id INTEGER NOT NULL REFERENCES generators(id),
	modelno      INTEGER NOT NULL,
	state_json   BLOB NOT NULL,
	PRIMARY KEY (generator_id, modelno),
	FOREIGN KEY (generator_id, modelno)
		REFERENCES generator_models (generator_id, modelno)
);
`
