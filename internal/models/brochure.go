package models

import "time"

// BrochureSetup holds the cover and credits content for one trail's printed
// brochure. Saved wholesale on every edit; there is no partial merge.
type BrochureSetup struct {
	ID             string    `db:"id" json:"id"`
	TrailID        string    `db:"trail_id" json:"trailId"`
	CoverTitle     string    `db:"cover_title" json:"coverTitle"`
	CoverPhotoBlob []byte    `db:"cover_photo_blob" json:"-"`
	GroupName      string    `db:"group_name" json:"groupName"`
	FunderText     string    `db:"funder_text" json:"funderText"`
	CreditsText    string    `db:"credits_text" json:"creditsText"`
	IntroText      string    `db:"intro_text" json:"introText"`
	MapBlob        []byte    `db:"map_blob" json:"-"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// SetupComplete reports whether all fields required before a brochure can be
// generated are present.
func (b *BrochureSetup) SetupComplete() bool {
	return b.CoverTitle != "" && b.GroupName != "" && b.IntroText != "" && len(b.CoverPhotoBlob) > 0
}

// TableName returns the table name for BrochureSetup.
func (BrochureSetup) TableName() string {
	return "brochure_setups"
}
