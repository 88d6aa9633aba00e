// Package migration applies the versioned SQL schema with golang-migrate.
//
// Migration files come either from a directory (the migrate CLI with -path)
// or from the set embedded in the binary (server start-up with
// database.auto_migrate). New pairs are scaffolded by CreateMigration.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Source locates the migration files.
type Source struct {
	dir  string
	fsys fs.FS
}

// FromDir reads migrations from a directory on disk.
func FromDir(path string) Source { return Source{dir: path} }

// FromFS reads migrations from dir inside fsys, typically an embed.FS.
func FromFS(fsys fs.FS, dir string) Source { return Source{dir: dir, fsys: fsys} }

func (s Source) String() string {
	if s.fsys != nil {
		return "embedded:" + s.dir
	}
	return s.dir
}

func (s Source) instance(db database.Driver) (*migrate.Migrate, error) {
	if s.fsys == nil {
		return migrate.NewWithDatabaseInstance("file://"+s.dir, "postgres", db)
	}
	files, err := iofs.New(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithInstance("iofs", files, "postgres", db)
}

// Target is where a Migrate call should leave the schema.
type Target struct {
	kind    targetKind
	steps   int
	version uint
}

type targetKind uint8

const (
	toLatest targetKind = iota
	toEmpty
	toRelative
	toVersion
)

// Latest applies every pending migration.
func Latest() Target { return Target{kind: toLatest} }

// Empty rolls every applied migration back.
func Empty() Target { return Target{kind: toEmpty} }

// Relative moves n migrations forward, or backward when n is negative.
func Relative(n int) Target { return Target{kind: toRelative, steps: n} }

// Version moves up or down to exactly v.
func Version(v uint) Target { return Target{kind: toVersion, version: v} }

func (t Target) String() string {
	switch t.kind {
	case toEmpty:
		return "empty"
	case toRelative:
		return fmt.Sprintf("%+d", t.steps)
	case toVersion:
		return fmt.Sprintf("version %d", t.version)
	default:
		return "latest"
	}
}

// State is the applied schema version. Dirty means a migration failed
// halfway and Force is needed before anything else runs.
type State struct {
	Version uint
	Dirty   bool
}

// Schema drives migrations against one PostgreSQL database.
type Schema struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New prepares a Schema on an open PostgreSQL handle.
func New(db *sql.DB, src Source, log *zap.Logger) (*Schema, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := src.instance(driver)
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", src, err)
	}
	return &Schema{m: m, log: log.With(zap.Stringer("source", src))}, nil
}

// Migrate moves the schema to t. Being there already is not an error.
func (s *Schema) Migrate(t Target) error {
	var err error
	switch t.kind {
	case toEmpty:
		err = s.m.Down()
	case toRelative:
		err = s.m.Steps(t.steps)
	case toVersion:
		err = s.m.Migrate(t.version)
	default:
		err = s.m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		s.log.Info("schema unchanged", zap.Stringer("target", t))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate to %s: %w", t, err)
	}

	st, err := s.State()
	if err != nil {
		return err
	}
	s.log.Info("schema migrated",
		zap.Stringer("target", t),
		zap.Uint("version", st.Version),
		zap.Bool("dirty", st.Dirty))
	return nil
}

// Up is Migrate(Latest()).
func (s *Schema) Up() error { return s.Migrate(Latest()) }

// State reports the applied version; version 0 means nothing is applied.
func (s *Schema) State() (State, error) {
	v, dirty, err := s.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return State{}, nil
	case err != nil:
		return State{}, fmt.Errorf("read schema version: %w", err)
	}
	return State{Version: v, Dirty: dirty}, nil
}

// Force records v as applied without running anything. It clears the
// dirty flag left by a failed migration.
func (s *Schema) Force(v int) error {
	s.log.Warn("forcing schema version", zap.Int("version", v))
	if err := s.m.Force(v); err != nil {
		return fmt.Errorf("force version %d: %w", v, err)
	}
	return nil
}

// Drop removes every object in the database, migration history included.
func (s *Schema) Drop() error {
	s.log.Warn("dropping every database object")
	if err := s.m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

// Close releases the source and the database driver.
func (s *Schema) Close() error {
	srcErr, dbErr := s.m.Close()
	return errors.Join(srcErr, dbErr)
}
