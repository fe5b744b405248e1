// Package archive reads and writes the portable trail archive: a ZIP
// holding manifest.json plus the image assets. Archives move trails
// between devices without any network.
package archive

import (
	"encoding/json"
	"time"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

// FormatVersion is the current archive layout version.
const FormatVersion = 1

const (
	manifestName = "manifest.json"
	imageDir     = "images/"
	thumbDir     = "thumbs/"
	coverName    = "brochure/cover.jpg"
	mapName      = "brochure/map.jpg"
)

// Manifest is the metadata document at the root of every archive. Image
// bytes live beside it as ZIP entries, referenced by the deterministic
// POI filenames.
type Manifest struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exportedAt"`
	Trail      models.Trail           `json:"trail"`
	POIs       []models.POIRecord     `json:"pois"`
	Brochure   *models.BrochureSetup  `json:"brochure,omitempty"`
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.Wrap(apperr.ErrCorruptedArchive, "manifest is not valid JSON", err)
	}
	if m.Version < 1 || m.Version > FormatVersion {
		return nil, apperr.Newf(apperr.ErrCorruptedArchive, "unsupported archive version %d", m.Version)
	}
	if !models.ValidTrailType(m.Trail.TrailType) {
		return nil, apperr.New(apperr.ErrCorruptedArchive, "manifest trail record is invalid")
	}
	if m.Trail.GroupCode == "" {
		return nil, apperr.New(apperr.ErrCorruptedArchive, "manifest trail has no group code")
	}
	// The id is derived, never trusted: the same rule that mints local
	// trail ids decides which local trail this archive collides with.
	derived := models.TrailID(m.Trail.GroupCode, m.Trail.TrailType)
	if m.Trail.ID != "" && m.Trail.ID != derived {
		return nil, apperr.New(apperr.ErrCorruptedArchive, "manifest trail id does not match its group code and type")
	}
	m.Trail.ID = derived
	return &m, nil
}

// validPOI reports whether a manifest POI record is importable. Records
// failing this are counted as skipped, never imported.
func validPOI(trail models.Trail, p models.POIRecord) bool {
	if p.Sequence < 1 || p.Sequence > models.MaxTrailCapacity {
		return false
	}
	if p.TrailID != trail.ID || p.GroupCode != trail.GroupCode || p.TrailType != trail.TrailType {
		return false
	}
	if p.ID != models.POIID(p.GroupCode, p.TrailType, p.Sequence) {
		return false
	}
	if p.Filename == "" {
		return false
	}
	return true
}
