package db

import (
	"context"
	"database/sql"
	"time"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
)

// CreatePOIInput carries a fresh capture. The store mints the sequence
// number, id, and filename from the trail's counter.
type CreatePOIInput struct {
	TrailID       string
	PhotoBlob     []byte
	ThumbnailBlob []byte
	Latitude      *float64
	Longitude     *float64
	Accuracy      *float64
	CapturedAt    time.Time
	SiteName      string
	Category      string
	Description   string
	Story         string
	URL           string
	Condition     string
	Notes         string
}

// CreatePOI captures a new POI on a trail. Sequence allocation, the POI
// insert, the trail counter bump, and both sync enqueues happen in one
// transaction, so the counter can never run ahead of the stored POIs.
// A full trail rejects the capture.
func (s *Store) CreatePOI(ctx context.Context, in CreatePOIInput) (*models.POIRecord, error) {
	if len(in.PhotoBlob) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "poi requires a photo")
	}
	if in.Category == "" {
		in.Category = models.DefaultPOICategory
	}
	if in.Condition == "" {
		in.Condition = models.DefaultPOICondition
	}
	if in.CapturedAt.IsZero() {
		in.CapturedAt = time.Now().UTC()
	}

	var poi *models.POIRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow("SELECT "+trailColumns+" FROM trails WHERE id = ?", in.TrailID)
		trail, err := scanTrail(row)
		if err == sql.ErrNoRows {
			return apperr.New(apperr.ErrNotFound, "trail not found: "+in.TrailID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to read trail", err)
		}
		if trail.Full() {
			return apperr.Newf(apperr.ErrValidation, "trail %s is full (%d POIs)", trail.ID, models.MaxTrailCapacity)
		}

		seq := trail.NextSequence
		poi = &models.POIRecord{
			ID:            models.POIID(trail.GroupCode, trail.TrailType, seq),
			TrailID:       trail.ID,
			GroupCode:     trail.GroupCode,
			TrailType:     trail.TrailType,
			Sequence:      seq,
			Filename:      models.POIFilename(trail.GroupCode, trail.TrailType, seq),
			PhotoBlob:     in.PhotoBlob,
			ThumbnailBlob: in.ThumbnailBlob,
			Latitude:      in.Latitude,
			Longitude:     in.Longitude,
			Accuracy:      in.Accuracy,
			CapturedAt:    in.CapturedAt,
			SiteName:      in.SiteName,
			Category:      in.Category,
			Description:   in.Description,
			Story:         in.Story,
			URL:           in.URL,
			Condition:     in.Condition,
			Notes:         in.Notes,
		}
		poi.RecomputeCompleted()

		if err := insertPOITx(tx, poi); err != nil {
			return err
		}

		now := time.Now().UTC().Unix()
		if _, err := tx.Exec(
			"UPDATE trails SET next_sequence = ?, updated_at = ? WHERE id = ?",
			seq+1, now, trail.ID,
		); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to advance trail sequence", err)
		}

		if err := enqueueTx(tx, models.KindPOI, poi.ID, models.OpUpsert); err != nil {
			return err
		}
		return enqueueTx(tx, models.KindTrail, trail.ID, models.OpUpsert)
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("poi captured", map[string]interface{}{
		"poi_id":   poi.ID,
		"sequence": poi.Sequence,
	})
	return poi, nil
}

func insertPOITx(tx *sql.Tx, p *models.POIRecord) error {
	_, err := tx.Exec(`
		INSERT INTO pois (
			id, trail_id, group_code, trail_type, sequence, filename,
			photo_blob, thumbnail_blob, latitude, longitude, accuracy,
			captured_at, site_name, category, description, story, url,
			condition, notes, completed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			photo_blob = excluded.photo_blob,
			thumbnail_blob = excluded.thumbnail_blob,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			accuracy = excluded.accuracy,
			captured_at = excluded.captured_at,
			site_name = excluded.site_name,
			category = excluded.category,
			description = excluded.description,
			story = excluded.story,
			url = excluded.url,
			condition = excluded.condition,
			notes = excluded.notes,
			completed = excluded.completed`,
		p.ID, p.TrailID, p.GroupCode, string(p.TrailType), p.Sequence, p.Filename,
		p.PhotoBlob, p.ThumbnailBlob, p.Latitude, p.Longitude, p.Accuracy,
		p.CapturedAt.Unix(), p.SiteName, p.Category, p.Description, p.Story, p.URL,
		p.Condition, p.Notes, boolToInt(p.Completed),
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to write poi", err)
	}
	return nil
}

// PutPOI writes a POI wholesale with its existing identity. The import
// path uses this; the trail's sequence counter is raised if the landed
// sequence would otherwise be reissued.
func (s *Store) PutPOI(ctx context.Context, p *models.POIRecord) error {
	if p.Sequence < 1 || p.Sequence > models.MaxTrailCapacity {
		return apperr.Newf(apperr.ErrValidation, "sequence %d out of range", p.Sequence)
	}
	p.RecomputeCompleted()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putPOITx(tx, p)
	})
}

func putPOITx(tx *sql.Tx, p *models.POIRecord) error {
	if err := insertPOITx(tx, p); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE trails SET next_sequence = ?, updated_at = ?
		WHERE id = ? AND next_sequence <= ?`,
		p.Sequence+1, time.Now().UTC().Unix(), p.TrailID, p.Sequence,
	); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to raise trail sequence", err)
	}
	return enqueueTx(tx, models.KindPOI, p.ID, models.OpUpsert)
}

const poiMetaColumns = `id, trail_id, group_code, trail_type, sequence, filename,
	latitude, longitude, accuracy, captured_at, site_name, category,
	description, story, url, condition, notes, completed`

func scanPOI(row interface{ Scan(...interface{}) error }, withBlobs bool) (*models.POIRecord, error) {
	var p models.POIRecord
	var trailType string
	var capturedAt int64
	var completed int

	dest := []interface{}{
		&p.ID, &p.TrailID, &p.GroupCode, &trailType, &p.Sequence, &p.Filename,
		&p.Latitude, &p.Longitude, &p.Accuracy, &capturedAt, &p.SiteName, &p.Category,
		&p.Description, &p.Story, &p.URL, &p.Condition, &p.Notes, &completed,
	}
	if withBlobs {
		dest = append(dest, &p.PhotoBlob, &p.ThumbnailBlob)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.TrailType = models.TrailType(trailType)
	p.CapturedAt = time.Unix(capturedAt, 0).UTC()
	p.Completed = completed != 0
	return &p, nil
}

func poiSelect(withBlobs bool) string {
	cols := poiMetaColumns
	if withBlobs {
		cols += ", photo_blob, thumbnail_blob"
	}
	return "SELECT " + cols + " FROM pois"
}

// GetPOI returns one POI, or nil when absent. Metadata-only reads skip
// the image blobs, which keeps list screens cheap.
func (s *Store) GetPOI(ctx context.Context, id string, withBlobs bool) (*models.POIRecord, error) {
	row := s.db.QueryRowContext(ctx, poiSelect(withBlobs)+" WHERE id = ?", id)
	p, err := scanPOI(row, withBlobs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to read poi", err)
	}
	return p, nil
}

// ListPOIsByTrail returns a trail's POIs ordered by sequence.
func (s *Store) ListPOIsByTrail(ctx context.Context, trailID string, withBlobs bool) ([]*models.POIRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		poiSelect(withBlobs)+" WHERE trail_id = ? ORDER BY sequence", trailID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to list pois", err)
	}
	defer rows.Close()

	var pois []*models.POIRecord
	for rows.Next() {
		p, err := scanPOI(rows, withBlobs)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrDatabase, "failed to scan poi", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to iterate pois", err)
	}
	return pois, nil
}

// UpdatePOI applies a partial update. Absent fields keep their stored
// values; the completed flag is re-derived from the merged record. The
// upsert is enqueued in the same transaction.
func (s *Store) UpdatePOI(ctx context.Context, id string, upd models.POIUpdate) (*models.POIRecord, error) {
	var merged *models.POIRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRow(poiSelect(true)+" WHERE id = ?", id)
		p, err := scanPOI(row, true)
		if err == sql.ErrNoRows {
			return apperr.New(apperr.ErrNotFound, "poi not found: "+id)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to read poi", err)
		}

		applyPOIUpdate(p, upd)
		p.RecomputeCompleted()

		if err := insertPOITx(tx, p); err != nil {
			return err
		}
		merged = p
		return enqueueTx(tx, models.KindPOI, p.ID, models.OpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func applyPOIUpdate(p *models.POIRecord, upd models.POIUpdate) {
	if upd.Latitude != nil {
		p.Latitude = upd.Latitude
	}
	if upd.Longitude != nil {
		p.Longitude = upd.Longitude
	}
	if upd.Accuracy != nil {
		p.Accuracy = upd.Accuracy
	}
	if upd.SiteName != nil {
		p.SiteName = *upd.SiteName
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Story != nil {
		p.Story = *upd.Story
	}
	if upd.URL != nil {
		p.URL = *upd.URL
	}
	if upd.Condition != nil {
		p.Condition = *upd.Condition
	}
	if upd.Notes != nil {
		p.Notes = *upd.Notes
	}
	if upd.PhotoBlob != nil {
		p.PhotoBlob = upd.PhotoBlob
	}
	if upd.Thumbnail != nil {
		p.ThumbnailBlob = upd.Thumbnail
	}
}

// DeletePOI removes a POI and enqueues its delete. The trail's sequence
// counter is left alone; slots are never reissued. Deleting an absent
// POI is a no-op.
func (s *Store) DeletePOI(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM pois WHERE id = ?", id)
		if err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to delete poi", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return nil
		}
		return enqueueTx(tx, models.KindPOI, id, models.OpDelete)
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
