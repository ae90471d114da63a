package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// ErrSchemaTooNew means the database was migrated by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    metadata_path TEXT,
    split_path TEXT,
    cloud_max REAL,
    tile TEXT,
    lat_col TEXT,
    lon_col TEXT,
    id_col TEXT,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "Add compare image id to sessions",
		SQL: `
ALTER TABLE sessions ADD COLUMN compare_id TEXT;
`,
	},
	{
		Version:     3,
		Description: "Add load_runs audit table",
		SQL: `
CREATE TABLE IF NOT EXISTS load_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    path TEXT NOT NULL,
    format TEXT NOT NULL,
    row_count INTEGER,
    column_count INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_load_runs_started ON load_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_load_runs_path ON load_runs(path);
`,
	},
}

// Migrate applies pending session and audit migrations in version order.
// It refuses to run against a schema newer than the last known migration.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.appliedVersions()
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	latest := migrations[len(migrations)-1].Version
	for v := range applied {
		if v > latest {
			return fmt.Errorf("%w: version %d, latest known %d", ErrSchemaTooNew, v, latest)
		}
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("store: migration %d: %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) appliedVersions() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// MigrationVersion is the highest applied migration, or 0 on a fresh database.
func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
