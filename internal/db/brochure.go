package db

import (
	"context"
	"database/sql"
	"time"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

// PutBrochureSetup writes a trail's brochure setup wholesale. There is no
// partial update for brochure settings; the caller always supplies the
// complete setup and it replaces whatever was stored.
func (s *Store) PutBrochureSetup(ctx context.Context, b *models.BrochureSetup) error {
	if b.TrailID == "" {
		return apperr.New(apperr.ErrValidation, "brochure setup requires a trail id")
	}
	if b.ID == "" {
		b.ID = b.TrailID
	}
	b.UpdatedAt = time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putBrochureTx(tx, b)
	})
}

func putBrochureTx(tx *sql.Tx, b *models.BrochureSetup) error {
	_, err := tx.Exec(`
		INSERT INTO brochure_setups (
			id, trail_id, cover_title, cover_photo_blob, group_name,
			funder_text, credits_text, intro_text, map_blob, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cover_title = excluded.cover_title,
			cover_photo_blob = excluded.cover_photo_blob,
			group_name = excluded.group_name,
			funder_text = excluded.funder_text,
			credits_text = excluded.credits_text,
			intro_text = excluded.intro_text,
			map_blob = excluded.map_blob,
			updated_at = excluded.updated_at`,
		b.ID, b.TrailID, b.CoverTitle, b.CoverPhotoBlob, b.GroupName,
		b.FunderText, b.CreditsText, b.IntroText, b.MapBlob, b.UpdatedAt.Unix(),
	)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "failed to write brochure setup", err)
	}
	return enqueueTx(tx, models.KindBrochureSetup, b.ID, models.OpUpsert)
}

// GetBrochureSetup returns the brochure setup for a trail, or nil.
func (s *Store) GetBrochureSetup(ctx context.Context, trailID string, withBlobs bool) (*models.BrochureSetup, error) {
	cols := "id, trail_id, cover_title, group_name, funder_text, credits_text, intro_text, updated_at"
	if withBlobs {
		cols += ", cover_photo_blob, map_blob"
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+cols+" FROM brochure_setups WHERE trail_id = ?", trailID)

	var b models.BrochureSetup
	var updatedAt int64
	dest := []interface{}{&b.ID, &b.TrailID, &b.CoverTitle, &b.GroupName, &b.FunderText, &b.CreditsText, &b.IntroText, &updatedAt}
	if withBlobs {
		dest = append(dest, &b.CoverPhotoBlob, &b.MapBlob)
	}
	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDatabase, "failed to read brochure setup", err)
	}
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}

// DeleteBrochureSetup removes a trail's brochure setup, enqueueing the
// delete when one existed.
func (s *Store) DeleteBrochureSetup(ctx context.Context, trailID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM brochure_setups WHERE trail_id = ?", trailID)
		if err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "failed to delete brochure setup", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return nil
		}
		return enqueueTx(tx, models.KindBrochureSetup, trailID, models.OpDelete)
	})
}
