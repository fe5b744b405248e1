// Package models provides data model definitions for the trail recorder core.
package models

import "time"

// UserProfile is the singleton device profile created during first-run setup.
// The group code is derived once from the group name and is immutable after
// creation; it namespaces every trail and POI identifier on this device.
type UserProfile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email,omitempty"`
	Name      string    `db:"name" json:"name"`
	GroupName string    `db:"group_name" json:"groupName"`
	GroupCode string    `db:"group_code" json:"groupCode"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SyncIdentity returns the normalized email used to scope rows on the remote
// backend. Empty when the profile has no email.
func (p *UserProfile) SyncIdentity() string {
	return NormalizeEmail(p.Email)
}

// TableName returns the table name for UserProfile.
func (UserProfile) TableName() string {
	return "user_profile"
}
