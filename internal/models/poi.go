package models

import "time"

// Default values applied when a POI is captured without the optional
// free-text fields filled in.
const (
	DefaultPOICategory  = "Other"
	DefaultPOICondition = "Good"
)

// POIRecord is a single point of interest on a trail. Identity is
// (groupCode, trailType, sequence), encoded into the id and filename.
// The geolocation fields are nil when the device had no GPS fix at capture
// time. Photo and thumbnail blobs may be omitted by metadata-only reads.
type POIRecord struct {
	ID            string    `db:"id" json:"id"`
	TrailID       string    `db:"trail_id" json:"trailId"`
	GroupCode     string    `db:"group_code" json:"groupCode"`
	TrailType     TrailType `db:"trail_type" json:"trailType"`
	Sequence      int       `db:"sequence" json:"sequence"`
	Filename      string    `db:"filename" json:"filename"`
	PhotoBlob     []byte    `db:"photo_blob" json:"-"`
	ThumbnailBlob []byte    `db:"thumbnail_blob" json:"-"`
	Latitude      *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude     *float64  `db:"longitude" json:"longitude,omitempty"`
	Accuracy      *float64  `db:"accuracy" json:"accuracy,omitempty"`
	CapturedAt    time.Time `db:"captured_at" json:"capturedAt"`
	SiteName      string    `db:"site_name" json:"siteName"`
	Category      string    `db:"category" json:"category"`
	Description   string    `db:"description" json:"description"`
	Story         string    `db:"story" json:"story"`
	URL           string    `db:"url" json:"url"`
	Condition     string    `db:"condition" json:"condition"`
	Notes         string    `db:"notes" json:"notes"`
	Completed     bool      `db:"completed" json:"completed"`
}

// RecomputeCompleted re-derives the completed flag. A POI is complete iff
// both the site name and the description are non-empty.
func (p *POIRecord) RecomputeCompleted() {
	p.Completed = p.SiteName != "" && p.Description != ""
}

// TableName returns the table name for POIRecord.
func (POIRecord) TableName() string {
	return "pois"
}

// POIUpdate carries a partial update for a POI. Nil fields are left
// untouched; the store re-derives Completed whenever SiteName or
// Description is present.
type POIUpdate struct {
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	SiteName    *string  `json:"siteName,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Story       *string  `json:"story,omitempty"`
	URL         *string  `json:"url,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	PhotoBlob   []byte   `json:"-"`
	Thumbnail   []byte   `json:"-"`
}
