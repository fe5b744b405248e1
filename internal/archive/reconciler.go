package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/media"
	"github.com/memorytrail/trailcore/internal/models"
)

// parsedArchive is an archive held open across a conflict prompt.
type parsedArchive struct {
	manifest *Manifest
	images   map[string][]byte
	thumbs   map[string][]byte
	cover    []byte
	mapImage []byte
}

// Reconciler imports trail archives and mediates conflicts with local
// data. When an import collides with an existing trail the archive is
// held in memory until Resolve or Reset; the session is device-local
// state, not persisted.
type Reconciler struct {
	store *db.Store

	mu      sync.Mutex
	pending *parsedArchive
}

// NewReconciler creates a reconciler over the local store.
func NewReconciler(store *db.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Import reads an archive and lands it locally. A corrupted archive is
// reported inside the result, not as a Go error; real errors mean the
// local store misbehaved. When the archived trail already exists locally
// the result is a conflict and nothing is written until Resolve. A new
// conflicting import while one is already pending replaces the held
// archive: the operator picked a different file, so the latest one is
// what Resolve acts on.
func (r *Reconciler) Import(ctx context.Context, data []byte) (*models.ImportResult, error) {
	parsed, err := parseArchive(data)
	if err != nil {
		logging.Warn("archive rejected", map[string]interface{}{"error": err.Error()})
		return &models.ImportResult{
			Status:       models.ImportError,
			ErrorMessage: err.Error(),
		}, nil
	}

	trail := parsed.manifest.Trail
	existing, err := r.store.GetTrail(ctx, trail.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.mu.Lock()
		r.pending = parsed
		r.mu.Unlock()

		existingAt := existing.UpdatedAt
		incomingAt := trail.UpdatedAt
		return &models.ImportResult{
			Status:            models.ImportConflict,
			TrailID:           trail.ID,
			TrailName:         trail.DisplayName,
			ExistingUpdatedAt: &existingAt,
			IncomingUpdatedAt: &incomingAt,
		}, nil
	}

	return r.land(ctx, parsed)
}

// Resolve settles a pending conflict. Overwrite replaces the local trail
// with the archived one through the same landing path a clean import
// uses; keep discards the archive and leaves local data untouched.
// Either way the pending archive is released.
func (r *Reconciler) Resolve(ctx context.Context, overwrite bool) (*models.ImportResult, error) {
	r.mu.Lock()
	parsed := r.pending
	r.pending = nil
	r.mu.Unlock()

	if parsed == nil {
		return nil, apperr.New(apperr.ErrValidation, "no import conflict awaiting resolution")
	}

	if !overwrite {
		return &models.ImportResult{
			Status:    models.ImportSuccess,
			TrailID:   parsed.manifest.Trail.ID,
			TrailName: parsed.manifest.Trail.DisplayName,
		}, nil
	}

	// The local trail goes first so replaced POIs get their remote
	// deletes queued; the re-import's upserts then supersede where ids
	// overlap.
	if err := r.store.DeleteTrail(ctx, parsed.manifest.Trail.ID); err != nil {
		return nil, err
	}
	return r.land(ctx, parsed)
}

// Reset discards any pending conflict without touching local data.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

// HasPendingConflict reports whether an archive awaits resolution.
func (r *Reconciler) HasPendingConflict() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// land writes the archive's contents through the store. Each record
// lands independently; an invalid record or a missing asset skips that
// POI and the rest continue.
func (r *Reconciler) land(ctx context.Context, parsed *parsedArchive) (*models.ImportResult, error) {
	manifest := parsed.manifest
	trail := manifest.Trail

	if err := r.store.PutTrail(ctx, &trail); err != nil {
		return nil, err
	}

	result := &models.ImportResult{
		Status:    models.ImportSuccess,
		TrailID:   trail.ID,
		TrailName: trail.DisplayName,
	}

	for i := range manifest.POIs {
		poi := manifest.POIs[i]
		if !validPOI(trail, poi) {
			result.POIsSkipped++
			logging.Warn("invalid poi record skipped", map[string]interface{}{
				"poi_id": poi.ID,
			})
			continue
		}

		photo, ok := parsed.images[poi.Filename]
		if !ok || len(photo) == 0 {
			result.ImagesFailed++
			logging.Warn("poi image missing from archive", map[string]interface{}{
				"poi_id":   poi.ID,
				"filename": poi.Filename,
			})
			continue
		}
		poi.PhotoBlob = photo

		poi.ThumbnailBlob = parsed.thumbs[poi.Filename]
		if len(poi.ThumbnailBlob) == 0 {
			thumb, err := media.Thumbnail(photo)
			if err != nil {
				logging.Warn("thumbnail regeneration failed", map[string]interface{}{
					"poi_id": poi.ID,
					"error":  err.Error(),
				})
			} else {
				poi.ThumbnailBlob = thumb
			}
		}

		if err := r.store.PutPOI(ctx, &poi); err != nil {
			if apperr.Is(err, apperr.ErrValidation) {
				result.POIsSkipped++
				continue
			}
			return nil, err
		}
		result.POIsImported++
	}

	if manifest.Brochure != nil {
		brochure := *manifest.Brochure
		brochure.TrailID = trail.ID
		brochure.CoverPhotoBlob = parsed.cover
		brochure.MapBlob = parsed.mapImage
		if err := r.store.PutBrochureSetup(ctx, &brochure); err != nil {
			return nil, err
		}
	}

	logging.Info("archive imported", map[string]interface{}{
		"trail_id":      trail.ID,
		"pois_imported": result.POIsImported,
		"pois_skipped":  result.POIsSkipped,
		"images_failed": result.ImagesFailed,
	})
	return result, nil
}

func parseArchive(data []byte) (*parsedArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptedArchive, "not a readable archive", err)
	}

	parsed := &parsedArchive{
		images: map[string][]byte{},
		thumbs: map[string][]byte{},
	}
	var manifestData []byte

	for _, f := range zr.File {
		content, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		switch {
		case f.Name == manifestName:
			manifestData = content
		case f.Name == coverName:
			parsed.cover = content
		case f.Name == mapName:
			parsed.mapImage = content
		case len(f.Name) > len(imageDir) && f.Name[:len(imageDir)] == imageDir:
			parsed.images[f.Name[len(imageDir):]] = content
		case len(f.Name) > len(thumbDir) && f.Name[:len(thumbDir)] == thumbDir:
			parsed.thumbs[f.Name[len(thumbDir):]] = content
		}
	}

	if manifestData == nil {
		return nil, apperr.New(apperr.ErrCorruptedArchive, "archive has no manifest")
	}
	parsed.manifest, err = parseManifest(manifestData)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptedArchive, "failed to open "+f.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptedArchive, "failed to read "+f.Name, err)
	}
	return content, nil
}
