package db

import (
	"context"
	"testing"
	"time"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := NewMigrator(database).Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewStore(database)
}

func setupGroup(t *testing.T, s *Store) *models.UserProfile {
	t.Helper()
	profile, err := s.CreateUserProfile(context.Background(), "Mary", "Clonfert Trails", "Mary@Example.com")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return profile
}

func queueEntries(t *testing.T, s *Store) []models.SyncQueueEntry {
	t.Helper()
	rows, err := s.DB().Query("SELECT id, kind, entity_id, op, attempts FROM sync_queue ORDER BY rowid")
	if err != nil {
		t.Fatalf("failed to read queue: %v", err)
	}
	defer rows.Close()

	var entries []models.SyncQueueEntry
	for rows.Next() {
		var e models.SyncQueueEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Op, &e.Attempts); err != nil {
			t.Fatalf("failed to scan queue entry: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

func capture(t *testing.T, s *Store, trailID string) *models.POIRecord {
	t.Helper()
	poi, err := s.CreatePOI(context.Background(), CreatePOIInput{
		TrailID:   trailID,
		PhotoBlob: []byte("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	return poi
}

func TestSetupCreatesProfileAndBothTrails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	profile := setupGroup(t, s)
	if profile.GroupCode != "clonfert-trails" {
		t.Errorf("group code = %q", profile.GroupCode)
	}
	if profile.Email != "mary@example.com" {
		t.Errorf("email not normalized: %q", profile.Email)
	}

	trails, err := s.ListTrailsByGroup(ctx, "clonfert-trails")
	if err != nil {
		t.Fatalf("list trails: %v", err)
	}
	if len(trails) != 2 {
		t.Fatalf("expected 2 trails, got %d", len(trails))
	}
	if trails[0].ID != "clonfert-trails-graveyard" || trails[1].ID != "clonfert-trails-parish" {
		t.Errorf("trail ids = %s, %s", trails[0].ID, trails[1].ID)
	}

	done, err := s.SetupComplete(ctx)
	if err != nil || !done {
		t.Errorf("setup complete = %v, %v", done, err)
	}

	entries := queueEntries(t, s)
	if len(entries) != 2 {
		t.Fatalf("expected 2 queued trail upserts, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Kind != models.KindTrail || e.Op != models.OpUpsert {
			t.Errorf("unexpected queue entry %+v", e)
		}
	}

	if _, err := s.CreateUserProfile(ctx, "Pat", "Other Group", ""); !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("second setup should fail validation, got %v", err)
	}
}

func TestCreatePOIMintsSequentialIDs(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	trailID := "clonfert-trails-graveyard"

	first := capture(t, s, trailID)
	if first.ID != "clonfert-trails-graveyard-01" {
		t.Errorf("first id = %q", first.ID)
	}
	if first.Filename != "clonfert-trails-graveyard-01.jpg" {
		t.Errorf("filename = %q", first.Filename)
	}

	second := capture(t, s, trailID)
	if second.Sequence != 2 {
		t.Errorf("second sequence = %d", second.Sequence)
	}

	trail, err := s.GetTrail(context.Background(), trailID)
	if err != nil {
		t.Fatalf("get trail: %v", err)
	}
	if trail.NextSequence != 3 {
		t.Errorf("next sequence = %d", trail.NextSequence)
	}
}

func TestDeletedSequenceIsNeverReused(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()
	trailID := "clonfert-trails-parish"

	first := capture(t, s, trailID)
	if err := s.DeletePOI(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second := capture(t, s, trailID)
	if second.Sequence != 2 {
		t.Errorf("sequence %d was reissued after delete", second.Sequence)
	}
}

func TestTrailCapacityEnforced(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	trailID := "clonfert-trails-graveyard"

	for i := 0; i < models.MaxTrailCapacity; i++ {
		capture(t, s, trailID)
	}

	_, err := s.CreatePOI(context.Background(), CreatePOIInput{
		TrailID:   trailID,
		PhotoBlob: []byte("x"),
	})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Errorf("capture on full trail should fail validation, got %v", err)
	}
}

func TestUpdatePOIMergesAndRecomputesCompleted(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()

	poi := capture(t, s, "clonfert-trails-graveyard")
	if poi.Completed {
		t.Fatal("fresh capture should not be complete")
	}

	site := "Round Tower"
	updated, err := s.UpdatePOI(ctx, poi.ID, models.POIUpdate{SiteName: &site})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Completed {
		t.Error("site name alone should not complete the record")
	}

	desc := "12th century round tower beside the east wall."
	updated, err = s.UpdatePOI(ctx, poi.ID, models.POIUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Completed {
		t.Error("site name and description together should complete the record")
	}
	if updated.SiteName != site {
		t.Errorf("earlier field lost in merge: %q", updated.SiteName)
	}

	if _, err := s.UpdatePOI(ctx, "clonfert-trails-graveyard-99", models.POIUpdate{}); !apperr.Is(err, apperr.ErrNotFound) {
		t.Errorf("update of missing poi should be NOT_FOUND, got %v", err)
	}
}

func TestQueueSupersedeOnRepeatedMutation(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()

	poi := capture(t, s, "clonfert-trails-graveyard")
	site := "Holy Well"
	if _, err := s.UpdatePOI(ctx, poi.ID, models.POIUpdate{SiteName: &site}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var count int
	if err := s.DB().QueryRow(
		"SELECT COUNT(*) FROM sync_queue WHERE kind = 'poi' AND entity_id = ?", poi.ID,
	).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one pending entry per entity, got %d", count)
	}

	if err := s.DeletePOI(ctx, poi.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var op string
	if err := s.DB().QueryRow(
		"SELECT op FROM sync_queue WHERE kind = 'poi' AND entity_id = ?", poi.ID,
	).Scan(&op); err != nil {
		t.Fatalf("read op: %v", err)
	}
	if op != string(models.OpDelete) {
		t.Errorf("delete should supersede the queued upsert, op = %q", op)
	}
}

func TestDeletePOIIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()

	before := len(queueEntries(t, s))
	if err := s.DeletePOI(ctx, "clonfert-trails-graveyard-07"); err != nil {
		t.Fatalf("delete of absent poi should succeed, got %v", err)
	}
	if after := len(queueEntries(t, s)); after != before {
		t.Errorf("delete of absent poi must not enqueue, queue grew %d -> %d", before, after)
	}
}

func TestMetadataOnlyReadSkipsBlobs(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()

	poi := capture(t, s, "clonfert-trails-graveyard")

	meta, err := s.GetPOI(ctx, poi.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if meta.PhotoBlob != nil {
		t.Error("metadata-only read returned the photo blob")
	}

	full, err := s.GetPOI(ctx, poi.ID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(full.PhotoBlob) != "jpeg-bytes" {
		t.Errorf("blob read returned %q", full.PhotoBlob)
	}
}

func TestBrochureSetupOverwrittenWholesale(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()
	trailID := "clonfert-trails-parish"

	first := &models.BrochureSetup{
		TrailID:        trailID,
		CoverTitle:     "Clonfert Parish Trail",
		GroupName:      "Clonfert Trails",
		FunderText:     "Heritage Council grant",
		CreditsText:    "Photos by local volunteers",
		IntroText:      "Welcome",
		CoverPhotoBlob: []byte("cover"),
	}
	if err := s.PutBrochureSetup(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}

	stored, err := s.GetBrochureSetup(ctx, trailID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.FunderText != "Heritage Council grant" || stored.CreditsText != "Photos by local volunteers" {
		t.Errorf("funder/credits not stored separately: %q / %q", stored.FunderText, stored.CreditsText)
	}

	second := &models.BrochureSetup{
		TrailID:    trailID,
		CoverTitle: "Revised Title",
		GroupName:  "Clonfert Trails",
		IntroText:  "Welcome again",
	}
	if err := s.PutBrochureSetup(ctx, second); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetBrochureSetup(ctx, trailID, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CoverTitle != "Revised Title" {
		t.Errorf("cover title = %q", got.CoverTitle)
	}
	if got.FunderText != "" || got.CreditsText != "" {
		t.Error("stale funder/credits text survived a wholesale overwrite")
	}
	if got.CoverPhotoBlob != nil {
		t.Error("stale cover photo survived a wholesale overwrite")
	}
}

func TestDeleteTrailEnqueuesCascadingDeletes(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()
	trailID := "clonfert-trails-graveyard"

	p1 := capture(t, s, trailID)
	p2 := capture(t, s, trailID)
	if err := s.PutBrochureSetup(ctx, &models.BrochureSetup{TrailID: trailID, CoverTitle: "T"}); err != nil {
		t.Fatalf("put brochure: %v", err)
	}

	if err := s.DeleteTrail(ctx, trailID); err != nil {
		t.Fatalf("delete trail: %v", err)
	}

	if got, _ := s.GetTrail(ctx, trailID); got != nil {
		t.Error("trail still present")
	}
	if pois, _ := s.ListPOIsByTrail(ctx, trailID, false); len(pois) != 0 {
		t.Errorf("%d pois survived trail delete", len(pois))
	}

	ops := map[string]string{}
	for _, e := range queueEntries(t, s) {
		ops[string(e.Kind)+"/"+e.EntityID] = string(e.Op)
	}
	for _, key := range []string{"poi/" + p1.ID, "poi/" + p2.ID, "trail/" + trailID, "brochureSetup/" + trailID} {
		if ops[key] != "delete" {
			t.Errorf("expected queued delete for %s, got %q", key, ops[key])
		}
	}
}

func TestWipeAllResetsDevice(t *testing.T) {
	s := newTestStore(t)
	setupGroup(t, s)
	ctx := context.Background()
	capture(t, s, "clonfert-trails-graveyard")

	if err := s.WipeAll(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}

	if p, _ := s.GetUserProfile(ctx); p != nil {
		t.Error("profile survived wipe")
	}
	if done, _ := s.SetupComplete(ctx); done {
		t.Error("setup flag survived wipe")
	}
	if entries := queueEntries(t, s); len(entries) != 0 {
		t.Errorf("%d queue entries survived wipe", len(entries))
	}
}

func TestLastSyncedAtRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if ts, err := s.LastSyncedAt(ctx); err != nil || !ts.IsZero() {
		t.Errorf("fresh store should have zero last sync, got %v, %v", ts, err)
	}

	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if err := s.SetLastSyncedAt(ctx, at); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.LastSyncedAt(ctx)
	if err != nil || !got.Equal(at) {
		t.Errorf("last sync = %v, %v", got, err)
	}
}
