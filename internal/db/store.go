package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
)

// Store is the single entry point for local reads and writes. Every
// mutation that must reach the remote backend enqueues its sync entry in
// the same transaction, so a crash can never produce a saved entity with
// no pending sync record.
type Store struct {
	db *DB
}

// NewStore creates a store over an opened, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for the queue drain side.
func (s *Store) DB() *DB {
	return s.db
}

// withTx runs fn inside a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to commit transaction", err)
	}
	return nil
}

// enqueueTx records a pending mutation for (kind, entityID) inside the
// caller's transaction. A newer mutation supersedes any queued one: the
// row keeps its position but takes the new operation, a fresh id, and a
// reset attempt counter.
func enqueueTx(tx *sql.Tx, kind models.EntityKind, entityID string, op models.Operation) error {
	_, err := tx.Exec(`
		INSERT INTO sync_queue (id, kind, entity_id, op, enqueued_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, 0, '')
		ON CONFLICT (kind, entity_id) DO UPDATE SET
			id = excluded.id,
			op = excluded.op,
			enqueued_at = excluded.enqueued_at,
			attempts = 0,
			last_error = ''`,
		uuid.NewString(), string(kind), entityID, string(op), time.Now().Unix(),
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to enqueue sync entry", err)
	}
	return nil
}

// --- meta flags ---

func (s *Store) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.ErrDatabase, "failed to read meta", err)
	}
	return value, true, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to write meta", err)
	}
	return nil
}

// SetupComplete reports whether the one-time user setup has finished.
func (s *Store) SetupComplete(ctx context.Context) (bool, error) {
	value, ok, err := s.getMeta(ctx, "setup_complete")
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

// MarkSetupComplete records that the one-time user setup has finished.
func (s *Store) MarkSetupComplete(ctx context.Context) error {
	return s.setMeta(ctx, "setup_complete", "true")
}

// LastSyncedAt returns the time of the last fully successful sync run,
// or the zero time if no run has completed cleanly yet.
func (s *Store) LastSyncedAt(ctx context.Context) (time.Time, error) {
	value, ok, err := s.getMeta(ctx, "last_synced_at")
	if err != nil || !ok {
		return time.Time{}, err
	}
	ts, perr := time.Parse(time.RFC3339, value)
	if perr != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

// SetLastSyncedAt records the completion time of a clean full drain.
func (s *Store) SetLastSyncedAt(ctx context.Context, at time.Time) error {
	return s.setMeta(ctx, "last_synced_at", at.UTC().Format(time.RFC3339))
}

// WipeAll removes every locally stored entity, the sync queue, and all
// meta flags in one transaction. The device returns to its first-launch
// state. Only the archive flow calls this, after all remote pushes have
// been confirmed.
func (s *Store) WipeAll(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"pois", "brochure_setups", "trails", "user_profile", "sync_queue", "meta"} {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return apperr.Wrap(apperr.ErrDatabase, "failed to wipe "+table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.Info("local store wiped")
	return nil
}
