package models

import "time"

// EntityKind identifies which collection a sync queue entry targets.
type EntityKind string

const (
	KindPOI           EntityKind = "poi"
	KindTrail         EntityKind = "trail"
	KindBrochureSetup EntityKind = "brochureSetup"
)

// Operation is the pending mutation recorded for an entity.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// SyncQueueEntry is one pending outbound mutation. At most one pending entry
// exists per (kind, entity id): a newer mutation supersedes the queued one
// rather than duplicating it. Entries are removed only on confirmed remote
// success and are never silently dropped.
type SyncQueueEntry struct {
	ID         string     `db:"id" json:"id"`
	Kind       EntityKind `db:"kind" json:"kind"`
	EntityID   string     `db:"entity_id" json:"entityId"`
	Op         Operation  `db:"op" json:"op"`
	EnqueuedAt time.Time  `db:"enqueued_at" json:"enqueuedAt"`
	Attempts   int        `db:"attempts" json:"attempts"`
	LastError  string     `db:"last_error" json:"lastError,omitempty"`
}

// TableName returns the table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// QueueStats aggregates pending entries by entity kind for status displays.
type QueueStats struct {
	POICount           int `json:"poiCount"`
	TrailCount         int `json:"trailCount"`
	BrochureSetupCount int `json:"brochureSetupCount"`
}

// Total returns the number of pending entries across all kinds.
func (s QueueStats) Total() int {
	return s.POICount + s.TrailCount + s.BrochureSetupCount
}
