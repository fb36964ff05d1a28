// Package cli implements the gendb CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gendb/internal/crosscat"
	"gendb/internal/engine"
	"gendb/internal/metamodel"
	"gendb/internal/store"
)

var (
	dbPath  string
	verbose bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "gendb",
	Short: "Generative models over SQLite tables",
	Long:  "Create generators over SQLite tables, fit model ensembles, and query them: dependence, similarity, imputation, simulation. Single binary, single database file.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $GENDB_DB or ~/.gendb/gendb.db)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("GENDB_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gendb", "gendb.db")
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// openSession opens the database and registers the built-in backends.
func openSession(cmd *cobra.Command) (*store.Session, *metamodel.Registry, error) {
	log := newLogger()
	s, err := store.Open(getDBPath(), log)
	if err != nil {
		return nil, nil, err
	}
	reg := metamodel.NewRegistry()
	cc := crosscat.New(engine.NewLocal(time.Now().UnixNano()), log)
	if err := reg.Register(cc); err != nil {
		s.Close()
		return nil, nil, err
	}
	if err := cc.Register(cmd.Context(), s); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, reg, nil
}

// backendFor resolves a generator name to its id and owning backend.
func backendFor(cmd *cobra.Command, s *store.Session, reg *metamodel.Registry, generator string) (int64, metamodel.Metamodel, error) {
	id, err := s.GeneratorID(cmd.Context(), generator)
	if err != nil {
		return 0, nil, err
	}
	name, err := s.GeneratorBackend(cmd.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	m, err := reg.Lookup(name)
	if err != nil {
		return 0, nil, err
	}
	return id, m, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
