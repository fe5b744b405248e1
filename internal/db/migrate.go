package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// migration is one versioned schema step. Steps are additive only;
// released versions are never edited.
type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		sql: `
CREATE TABLE IF NOT EXISTS user_profile (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	group_name TEXT NOT NULL,
	group_code TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trails (
	id            TEXT PRIMARY KEY,
	group_code    TEXT NOT NULL,
	trail_type    TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	next_sequence INTEGER NOT NULL DEFAULT 1,
	UNIQUE (group_code, trail_type)
);

CREATE TABLE IF NOT EXISTS pois (
	id             TEXT PRIMARY KEY,
	trail_id       TEXT NOT NULL REFERENCES trails(id) ON DELETE CASCADE,
	group_code     TEXT NOT NULL,
	trail_type     TEXT NOT NULL,
	sequence       INTEGER NOT NULL,
	filename       TEXT NOT NULL,
	photo_blob     BLOB,
	thumbnail_blob BLOB,
	latitude       REAL,
	longitude      REAL,
	accuracy       REAL,
	captured_at    INTEGER NOT NULL,
	site_name      TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT 'Other',
	description    TEXT NOT NULL DEFAULT '',
	story          TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	condition      TEXT NOT NULL DEFAULT 'Good',
	notes          TEXT NOT NULL DEFAULT '',
	completed      INTEGER NOT NULL DEFAULT 0,
	UNIQUE (trail_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_pois_trail ON pois(trail_id, sequence);

CREATE TABLE IF NOT EXISTS brochure_setups (
	id               TEXT PRIMARY KEY,
	trail_id         TEXT NOT NULL,
	cover_title      TEXT NOT NULL DEFAULT '',
	cover_photo_blob BLOB,
	group_name       TEXT NOT NULL DEFAULT '',
	funder_text      TEXT NOT NULL DEFAULT '',
	credits_text     TEXT NOT NULL DEFAULT '',
	intro_text       TEXT NOT NULL DEFAULT '',
	map_blob         BLOB,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_queue (
	id          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	op          TEXT NOT NULL,
	enqueued_at INTEGER NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (kind, entity_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_queue_entry ON sync_queue(id);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
}

// Migrator applies schema migrations and records them in schema_migrations.
type Migrator struct {
	db *DB
}

// NewMigrator creates a migrator for the given database.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate applies all pending migrations in version order. Each step runs
// in its own transaction. A step whose recorded checksum no longer matches
// the embedded SQL fails the migration.
func (m *Migrator) Migrate() error {
	if _, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			checksum    TEXT NOT NULL,
			applied_at  INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, step := range migrations {
		applied, checksum, err := m.appliedChecksum(step.version)
		if err != nil {
			return err
		}
		sum := checksumOf(step.sql)
		if applied {
			if checksum != sum {
				return fmt.Errorf("migration %d checksum mismatch: schema drifted", step.version)
			}
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", step.version, err)
		}
		if _, err := tx.Exec(step.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", step.version, step.description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, checksum, applied_at) VALUES (?, ?, ?, ?)",
			step.version, step.description, sum, time.Now().Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", step.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", step.version, err)
		}
	}
	return nil
}

func (m *Migrator) appliedChecksum(version int) (bool, string, error) {
	var checksum string
	err := m.db.QueryRow(
		"SELECT checksum FROM schema_migrations WHERE version = ?", version,
	).Scan(&checksum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	return true, checksum, nil
}

func checksumOf(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
