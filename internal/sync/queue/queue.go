// Package queue exposes the drain side of the durable sync outbox. The
// store fills the queue inside its mutation transactions; the sync engine
// reads batches from here and confirms or fails each entry.
package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

// Outbox reads and settles pending sync entries.
type Outbox struct {
	db *db.DB
}

// NewOutbox creates an outbox over the device database.
func NewOutbox(database *db.DB) *Outbox {
	return &Outbox{db: database}
}

// DequeueBatch returns up to maxSize pending entries, oldest first. The
// read is non-destructive: entries leave the queue only via MarkSucceeded.
func (o *Outbox) DequeueBatch(ctx context.Context, maxSize int) ([]models.SyncQueueEntry, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, kind, entity_id, op, enqueued_at, attempts, last_error
		FROM sync_queue ORDER BY rowid LIMIT ?`, maxSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to read sync queue", err)
	}
	defer rows.Close()

	var entries []models.SyncQueueEntry
	for rows.Next() {
		var e models.SyncQueueEntry
		var enqueuedAt int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Op, &enqueuedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "failed to scan sync entry", err)
		}
		e.EnqueuedAt = time.Unix(enqueuedAt, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to iterate sync queue", err)
	}
	return entries, nil
}

// MarkSucceeded removes a confirmed entry. The delete is keyed on the
// entry id, not the entity, so an entry superseded mid-flight by a newer
// mutation stays queued. Removing an already-gone entry is a no-op.
func (o *Outbox) MarkSucceeded(ctx context.Context, entryID string) error {
	if _, err := o.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", entryID); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to remove sync entry", err)
	}
	return nil
}

// MarkFailed records a failed push attempt. The entry stays queued for
// the next run.
func (o *Outbox) MarkFailed(ctx context.Context, entryID string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if _, err := o.db.ExecContext(ctx,
		"UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		detail, entryID,
	); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to record sync failure", err)
	}
	return nil
}

// CountPending returns the number of queued entries.
func (o *Outbox) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := o.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.ErrDatabase, "failed to count sync queue", err)
	}
	return count, nil
}

// LastSuccessfulSyncAt returns the completion time of the most recent
// fully drained run, or the zero time before any clean drain.
func (o *Outbox) LastSuccessfulSyncAt(ctx context.Context) (time.Time, error) {
	var value string
	err := o.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'last_synced_at'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.ErrDatabase, "failed to read last sync time", err)
	}
	ts, perr := time.Parse(time.RFC3339, value)
	if perr != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

// StatsByKind breaks the pending entries down for status displays.
func (o *Outbox) StatsByKind(ctx context.Context) (models.QueueStats, error) {
	rows, err := o.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM sync_queue GROUP BY kind")
	if err != nil {
		return models.QueueStats{}, apperr.Wrap(apperr.ErrDatabase, "failed to aggregate sync queue", err)
	}
	defer rows.Close()

	var stats models.QueueStats
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return models.QueueStats{}, apperr.Wrap(apperr.ErrDatabase, "failed to scan queue stats", err)
		}
		switch models.EntityKind(kind) {
		case models.KindPOI:
			stats.POICount = count
		case models.KindTrail:
			stats.TrailCount = count
		case models.KindBrochureSetup:
			stats.BrochureSetupCount = count
		}
	}
	return stats, rows.Err()
}
