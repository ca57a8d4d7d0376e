// Package store owns the SQLite database: opening it, applying the embedded
// migrations and the few queries that do not belong to a narrower package.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"foreign_keys = ON",
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"busy_timeout = 5000",
}

// Store is the shared database handle.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath (use ":memory:" in tests) and applies all
// pending migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite is single-writer. One shared connection lets database/sql
	// serialize writers instead of having them fight for the lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec("PRAGMA " + pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection to packages that keep their own tables.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("store: schema version: %w", err)
	}
	return v, nil
}

// migration is one embedded file named NNNN_description.sql.
type migration struct {
	version int
	name    string
	file    string
}

func parseMigration(file string) (migration, bool) {
	stem, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return migration{}, false
	}
	num, name, ok := strings.Cut(stem, "_")
	if !ok {
		return migration{}, false
	}
	v, err := strconv.Atoi(num)
	if err != nil || v <= 0 {
		return migration{}, false
	}
	return migration{version: v, name: name, file: file}, true
}

func loadMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	byVersion := make(map[int]migration, len(files))
	for _, f := range files {
		m, ok := parseMigration(path.Base(f))
		if !ok {
			continue
		}
		if prev, dup := byVersion[m.version]; dup {
			return nil, fmt.Errorf("migration %04d defined twice (%s, %s)", m.version, prev.file, m.file)
		}
		byVersion[m.version] = m
	}
	out := slices.Collect(maps.Values(byVersion))
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	applied_at  TIMESTAMP NOT NULL,
	description TEXT NOT NULL
)`

func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	pending, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, m := range pending {
		if m.version <= current {
			continue
		}
		if err := s.apply(m); err != nil {
			return err
		}
		slog.Info("store: migration applied", "version", m.version, "name", m.name)
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (s *Store) apply(m migration) (err error) {
	body, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("migration %04d: begin: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.Exec(string(body)); err != nil {
		return fmt.Errorf("migration %04d: %w", m.version, err)
	}
	if _, err = tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.version, time.Now().UTC(), m.name,
	); err != nil {
		return fmt.Errorf("migration %04d: record: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migration %04d: commit: %w", m.version, err)
	}
	return nil
}
