package models

import "time"

// TrailType identifies one of the two trail kinds a group can record.
type TrailType string

const (
	TrailTypeGraveyard TrailType = "graveyard"
	TrailTypeParish    TrailType = "parish"
)

// ValidTrailType reports whether t is one of the two known trail types.
func ValidTrailType(t TrailType) bool {
	return t == TrailTypeGraveyard || t == TrailTypeParish
}

// MaxTrailCapacity is the hard cap on POIs per trail. The sequence counter
// is monotonic and never reclaimed, so deleting a POI does not free a slot.
const MaxTrailCapacity = 12

// Trail is a heritage trail owned by a group. At most one trail of each type
// exists per group code; the id is derived deterministically from both.
type Trail struct {
	ID           string    `db:"id" json:"id"`
	GroupCode    string    `db:"group_code" json:"groupCode"`
	TrailType    TrailType `db:"trail_type" json:"trailType"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	NextSequence int       `db:"next_sequence" json:"nextSequence"`
}

// Full reports whether the trail has exhausted its POI capacity.
func (t *Trail) Full() bool {
	return t.NextSequence > MaxTrailCapacity
}

// TableName returns the table name for Trail.
func (Trail) TableName() string {
	return "trails"
}
