// Package store provides the SQLite-backed session: the database handle,
// nested savepoint scopes, the backend-agnostic generator catalog, and the
// per-backend session cache.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Session is one connection to a gendb database. It is not safe for
// concurrent use: savepoint scopes and the cache assume a single writer.
type Session struct {
	db    *sql.DB
	log   *zap.Logger
	cache map[string]any
	spSeq int
}

// Open opens or creates a gendb database at the given path.
func Open(dbPath string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Savepoint scopes are issued as plain statements, so every statement of
	// a session must run on the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Session{
		db:    db,
		log:   log,
		cache: make(map[string]any),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("session opened", zap.String("path", dbPath))
	return s, nil
}

// Close closes the underlying database.
func (s *Session) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for backend-owned tables.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger {
	return s.log
}

// Savepoint runs fn inside a transactional scope. Scopes nest: an error from
// fn rolls back this scope's effects only and propagates; a caller that
// catches the error keeps its own scope's prior effects.
func (s *Session) Savepoint(ctx context.Context, fn func() error) error {
	s.spSeq++
	name := fmt.Sprintf("gendb_sp_%d", s.spSeq)
	if _, err := s.db.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := s.db.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("rollback to %s after %v: %w", name, err, rbErr)
		}
		s.db.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := s.db.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// ExecOne executes a statement that must affect exactly one row.
func (s *Session) ExecOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", n)
	}
	return nil
}

// CacheSlot returns the named backend's session cache entry, or nil.
func (s *Session) CacheSlot(name string) any {
	return s.cache[name]
}

// SetCacheSlot installs the named backend's session cache entry.
func (s *Session) SetCacheSlot(name string, v any) {
	s.cache[name] = v
}

// QuoteIdent quotes an identifier for embedding in SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
