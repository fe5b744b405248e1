package remote

import (
	"time"

	"github.com/memorytrail/trailcore/internal/models"
)

// trailRow is the wire shape of a trail upsert. Every row carries the
// normalized owner email so the backend can scope queries per group
// member.
type trailRow struct {
	ID           string `json:"id"`
	GroupCode    string `json:"group_code"`
	TrailType    string `json:"trail_type"`
	DisplayName  string `json:"display_name"`
	NextSequence int    `json:"next_sequence"`
	UpdatedAt    string `json:"updated_at"`
	UserEmail    string `json:"user_email"`
}

// poiRow is the wire shape of a POI upsert. Image bytes never travel in
// the row; they are uploaded to blob storage first and referenced by URL.
type poiRow struct {
	ID           string   `json:"id"`
	TrailID      string   `json:"trail_id"`
	GroupCode    string   `json:"group_code"`
	TrailType    string   `json:"trail_type"`
	Sequence     int      `json:"sequence"`
	Filename     string   `json:"filename"`
	PhotoURL     string   `json:"photo_url,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	CapturedAt   string   `json:"captured_at"`
	SiteName     string   `json:"site_name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Story        string   `json:"story"`
	URL          string   `json:"url"`
	Condition    string   `json:"condition"`
	Notes        string   `json:"notes"`
	Completed    bool     `json:"completed"`
	UserEmail    string   `json:"user_email"`
}

// brochureRow is the wire shape of a brochure setup upsert.
type brochureRow struct {
	ID            string `json:"id"`
	TrailID       string `json:"trail_id"`
	CoverTitle    string `json:"cover_title"`
	CoverPhotoURL string `json:"cover_photo_url,omitempty"`
	GroupName     string `json:"group_name"`
	FunderText    string `json:"funder_text"`
	CreditsText   string `json:"credits_text"`
	IntroText     string `json:"intro_text"`
	MapURL        string `json:"map_url,omitempty"`
	UpdatedAt     string `json:"updated_at"`
	UserEmail     string `json:"user_email"`
}

func trailToRow(t *models.Trail, owner string) trailRow {
	return trailRow{
		ID:           t.ID,
		GroupCode:    t.GroupCode,
		TrailType:    string(t.TrailType),
		DisplayName:  t.DisplayName,
		NextSequence: t.NextSequence,
		UpdatedAt:    t.UpdatedAt.UTC().Format(time.RFC3339),
		UserEmail:    owner,
	}
}

func poiToRow(p *models.POIRecord, photoURL, thumbURL, owner string) poiRow {
	return poiRow{
		ID:           p.ID,
		TrailID:      p.TrailID,
		GroupCode:    p.GroupCode,
		TrailType:    string(p.TrailType),
		Sequence:     p.Sequence,
		Filename:     p.Filename,
		PhotoURL:     photoURL,
		ThumbnailURL: thumbURL,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Accuracy:     p.Accuracy,
		CapturedAt:   p.CapturedAt.UTC().Format(time.RFC3339),
		SiteName:     p.SiteName,
		Category:     p.Category,
		Description:  p.Description,
		Story:        p.Story,
		URL:          p.URL,
		Condition:    p.Condition,
		Notes:        p.Notes,
		Completed:    p.Completed,
		UserEmail:    owner,
	}
}

func brochureToRow(b *models.BrochureSetup, coverURL, mapURL, owner string) brochureRow {
	return brochureRow{
		ID:            b.ID,
		TrailID:       b.TrailID,
		CoverTitle:    b.CoverTitle,
		CoverPhotoURL: coverURL,
		GroupName:     b.GroupName,
		FunderText:    b.FunderText,
		CreditsText:   b.CreditsText,
		IntroText:     b.IntroText,
		MapURL:        mapURL,
		UpdatedAt:     b.UpdatedAt.UTC().Format(time.RFC3339),
		UserEmail:     owner,
	}
}
