// Package finalize implements the end-of-project flow: after the group
// has exported its archive and generated its brochure, the trails are
// pushed to the backend one final time and the device is wiped.
package finalize

import (
	"context"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
)

// Archiver pushes a trail's complete state to the backend.
type Archiver interface {
	ArchiveTrail(ctx context.Context, t *models.Trail, pois []*models.POIRecord, brochure *models.BrochureSetup, owner string) error
}

// Confirmation records what the user attests to before the wipe. Both
// must be true; the flow cannot verify external artifacts itself.
type Confirmation struct {
	ZipExported  bool `json:"zipExported"`
	PdfGenerated bool `json:"pdfGenerated"`
}

// Result reports what the flow pushed before wiping.
type Result struct {
	TrailsArchived int `json:"trailsArchived"`
	POIsArchived   int `json:"poisArchived"`
}

// Flow runs the finalization sequence.
type Flow struct {
	store  *db.Store
	remote Archiver
	online func() bool
}

// New creates a finalization flow. online is consulted once, up front;
// a flow that starts offline makes zero remote calls.
func New(store *db.Store, remote Archiver, online func() bool) *Flow {
	return &Flow{store: store, remote: remote, online: online}
}

// Run archives every trail and, only after every push succeeded, wipes
// the device. Any failure aborts with all local data preserved; the flow
// is safe to re-run because every push is an idempotent upsert.
func (f *Flow) Run(ctx context.Context, confirm Confirmation) (*Result, error) {
	if !confirm.ZipExported || !confirm.PdfGenerated {
		return nil, apperr.New(apperr.ErrValidation, "archive requires confirmed zip export and brochure pdf")
	}
	if !f.online() {
		return nil, apperr.New(apperr.ErrOffline, "archiving requires a connection")
	}

	profile, err := f.store.GetUserProfile(ctx)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperr.New(apperr.ErrValidation, "nothing to archive before setup")
	}
	owner := profile.SyncIdentity()

	trails, err := f.store.ListTrailsByGroup(ctx, profile.GroupCode)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, trail := range trails {
		pois, err := f.store.ListPOIsByTrail(ctx, trail.ID, true)
		if err != nil {
			return nil, err
		}
		brochure, err := f.store.GetBrochureSetup(ctx, trail.ID, true)
		if err != nil {
			return nil, err
		}

		if err := f.remote.ArchiveTrail(ctx, trail, pois, brochure, owner); err != nil {
			logging.Error("archive push failed, local data preserved", err, map[string]interface{}{
				"trail_id": trail.ID,
			})
			return nil, apperr.Wrap(apperr.ErrArchiveFailed, "failed to archive trail "+trail.ID, err)
		}
		result.TrailsArchived++
		result.POIsArchived += len(pois)
	}

	if err := f.store.WipeAll(ctx); err != nil {
		return nil, err
	}

	logging.Info("project finalized", map[string]interface{}{
		"trails": result.TrailsArchived,
		"pois":   result.POIsArchived,
	})
	return result, nil
}
