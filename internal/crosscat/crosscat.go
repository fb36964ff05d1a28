// Package crosscat implements the reference metamodel backend: a
// nonparametric model in which columns are partitioned into blocks and rows
// are clustered within each block. The package owns persistence of metadata
// and per-model latent state, the session cache over both, the checkpointed
// analysis loop, incremental inserts, and the probabilistic estimators; the
// inference numerics live behind the Engine contract.
//
// External row ids are 1-based table rowids; the engine's row ids are
// 0-based. The offset is applied at every query and update boundary and
// neither representation leaks across it.
package crosscat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gendb/internal/metamodel"
	"gendb/internal/store"
)

// Name is the backend's registry name.
const Name = "crosscat"

// Crosscat is the backend. It is stateless apart from the engine handle and
// logger; all persistent and cached state lives in the session.
type Crosscat struct {
	engine Engine
	log    *zap.Logger
}

var _ metamodel.Metamodel = (*Crosscat)(nil)

// New returns a Crosscat backend driving the given engine.
func New(engine Engine, log *zap.Logger) *Crosscat {
	if log == nil {
		log = zap.NewNop()
	}
	return &Crosscat{engine: engine, log: log}
}

// Name implements metamodel.Metamodel.
func (cc *Crosscat) Name() string {
	return Name
}

// Register installs the crosscat schema. Registering against an already
// installed matching version is a no-op; a mismatched version is fatal.
func (cc *Crosscat) Register(ctx context.Context, s *store.Session) error {
	return s.Savepoint(ctx, func() error {
		version, err := s.MetamodelVersion(ctx, Name)
		if errors.Is(err, store.ErrNotFound) {
			if _, err := s.DB().ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("install crosscat schema: %w", err)
			}
			if err := s.InsertMetamodel(ctx, Name, schemaVersion); err != nil {
				return err
			}
			cc.log.Debug("crosscat schema installed", zap.Int("version", schemaVersion))
			return nil
		}
		if err != nil {
			return err
		}
		if version != schemaVersion {
			return fmt.Errorf("crosscat installed with schema version %d, want %d: %w",
				version, schemaVersion, store.ErrSchemaVersion)
		}
		return nil
	})
}
