package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
)

// Exporter writes trail archives.
type Exporter struct {
	store *db.Store
}

// NewExporter creates an exporter over the local store.
func NewExporter(store *db.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportTrail writes the trail's complete current state to w as a ZIP
// archive: the manifest, every POI image and thumbnail, and the brochure
// assets when present.
func (e *Exporter) ExportTrail(ctx context.Context, trailID string, w io.Writer) error {
	trail, err := e.store.GetTrail(ctx, trailID)
	if err != nil {
		return err
	}
	if trail == nil {
		return apperr.New(apperr.ErrNotFound, "trail not found: "+trailID)
	}

	pois, err := e.store.ListPOIsByTrail(ctx, trailID, true)
	if err != nil {
		return err
	}
	brochure, err := e.store.GetBrochureSetup(ctx, trailID, true)
	if err != nil {
		return err
	}

	manifest := Manifest{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Trail:      *trail,
		Brochure:   brochure,
	}
	for _, p := range pois {
		manifest.POIs = append(manifest.POIs, *p)
	}

	zw := zip.NewWriter(w)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.ErrArchiveFailed, "failed to encode manifest", err)
	}
	if err := writeEntry(zw, manifestName, manifestJSON); err != nil {
		return err
	}

	for _, p := range pois {
		if len(p.PhotoBlob) > 0 {
			if err := writeEntry(zw, imageDir+p.Filename, p.PhotoBlob); err != nil {
				return err
			}
		}
		if len(p.ThumbnailBlob) > 0 {
			if err := writeEntry(zw, thumbDir+p.Filename, p.ThumbnailBlob); err != nil {
				return err
			}
		}
	}

	if brochure != nil {
		if len(brochure.CoverPhotoBlob) > 0 {
			if err := writeEntry(zw, coverName, brochure.CoverPhotoBlob); err != nil {
				return err
			}
		}
		if len(brochure.MapBlob) > 0 {
			if err := writeEntry(zw, mapName, brochure.MapBlob); err != nil {
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return apperr.Wrap(apperr.ErrArchiveFailed, "failed to finalize archive", err)
	}

	logging.Info("trail exported", map[string]interface{}{
		"trail_id": trailID,
		"pois":     len(pois),
	})
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return apperr.Wrap(apperr.ErrArchiveFailed, "failed to add "+name, err)
	}
	if _, err := f.Write(data); err != nil {
		return apperr.Wrap(apperr.ErrArchiveFailed, "failed to write "+name, err)
	}
	return nil
}
