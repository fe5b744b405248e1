package db

import (
	"context"
	"database/sql"
	"time"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

func scanTrail(row interface{ Scan(...interface{}) error }) (*models.Trail, error) {
	var t models.Trail
	var trailType string
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.GroupCode, &trailType, &t.DisplayName, &createdAt, &updatedAt, &t.NextSequence)
	if err != nil {
		return nil, err
	}
	t.TrailType = models.TrailType(trailType)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

const trailColumns = "id, group_code, trail_type, display_name, created_at, updated_at, next_sequence"

// GetTrail returns the trail with the given id, or nil when absent.
func (s *Store) GetTrail(ctx context.Context, id string) (*models.Trail, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+trailColumns+" FROM trails WHERE id = ?", id)
	t, err := scanTrail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to read trail", err)
	}
	return t, nil
}

// GetTrailByType returns the group's trail of the given type, or nil.
func (s *Store) GetTrailByType(ctx context.Context, groupCode string, tt models.TrailType) (*models.Trail, error) {
	return s.GetTrail(ctx, models.TrailID(groupCode, tt))
}

// ListTrailsByGroup returns the group's trails ordered by type.
func (s *Store) ListTrailsByGroup(ctx context.Context, groupCode string) ([]*models.Trail, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+trailColumns+" FROM trails WHERE group_code = ? ORDER BY trail_type", groupCode)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to list trails", err)
	}
	defer rows.Close()

	var trails []*models.Trail
	for rows.Next() {
		t, err := scanTrail(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "failed to scan trail", err)
		}
		trails = append(trails, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to iterate trails", err)
	}
	return trails, nil
}

// PutTrail writes the trail wholesale and enqueues its upsert. The import
// path uses this to land trails with their sequence counter intact.
func (s *Store) PutTrail(ctx context.Context, t *models.Trail) error {
	if !models.ValidTrailType(t.TrailType) {
		return apperr.New(apperr.ErrValidation, "unknown trail type: "+string(t.TrailType))
	}
	if t.ID == "" {
		t.ID = models.TrailID(t.GroupCode, t.TrailType)
	}
	if t.NextSequence < 1 {
		t.NextSequence = 1
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putTrailTx(tx, t)
	})
}

func putTrailTx(tx *sql.Tx, t *models.Trail) error {
	_, err := tx.Exec(`
		INSERT INTO trails (id, group_code, trail_type, display_name, created_at, updated_at, next_sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at,
			next_sequence = excluded.next_sequence`,
		t.ID, t.GroupCode, string(t.TrailType), t.DisplayName,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(), t.NextSequence,
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to write trail", err)
	}
	return enqueueTx(tx, models.KindTrail, t.ID, models.OpUpsert)
}

// DeleteTrail removes the trail and all of its POIs, enqueueing deletes
// for everything that existed. Deleting an absent trail is a no-op.
func (s *Store) DeleteTrail(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteTrailTx(tx, id)
	})
}

func deleteTrailTx(tx *sql.Tx, id string) error {
	poiIDs, err := poiIDsForTrailTx(tx, id)
	if err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM trails WHERE id = ?", id)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to delete trail", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil
	}

	// POIs went with the trail via ON DELETE CASCADE; the brochure setup
	// keyed by the trail id goes here.
	bres, err := tx.Exec("DELETE FROM brochure_setups WHERE trail_id = ?", id)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to delete brochure setup", err)
	}

	for _, poiID := range poiIDs {
		if err := enqueueTx(tx, models.KindPOI, poiID, models.OpDelete); err != nil {
			return err
		}
	}
	if n, _ := bres.RowsAffected(); n > 0 {
		if err := enqueueTx(tx, models.KindBrochureSetup, id, models.OpDelete); err != nil {
			return err
		}
	}
	return enqueueTx(tx, models.KindTrail, id, models.OpDelete)
}

func poiIDsForTrailTx(tx *sql.Tx, trailID string) ([]string, error) {
	rows, err := tx.Query("SELECT id FROM pois WHERE trail_id = ?", trailID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to list poi ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "failed to scan poi id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
