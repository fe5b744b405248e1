package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/models"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.NewMigrator(database).Migrate())
	return db.NewStore(database)
}

func jpegBlob(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(2 * y), B: uint8(3 * x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// sourceArchive builds a populated store, exports its graveyard trail,
// and returns the archive bytes.
func sourceArchive(t *testing.T, poiCount int) []byte {
	t.Helper()
	src := newStore(t)
	ctx := context.Background()

	_, err := src.CreateUserProfile(ctx, "Mary", "Clonfert", "mary@example.com")
	require.NoError(t, err)

	photo := jpegBlob(t)
	for i := 0; i < poiCount; i++ {
		site := "Site"
		_, err := src.CreatePOI(ctx, db.CreatePOIInput{
			TrailID:     "clonfert-graveyard",
			PhotoBlob:   photo,
			SiteName:    site,
			Description: "An old site.",
		})
		require.NoError(t, err)
	}
	require.NoError(t, src.PutBrochureSetup(ctx, &models.BrochureSetup{
		TrailID:        "clonfert-graveyard",
		CoverTitle:     "Clonfert Graveyard Trail",
		GroupName:      "Clonfert",
		IntroText:      "Welcome",
		CoverPhotoBlob: photo,
	}))

	var buf bytes.Buffer
	require.NoError(t, NewExporter(src).ExportTrail(ctx, "clonfert-graveyard", &buf))
	return buf.Bytes()
}

func TestImportIntoEmptyDeviceRoundTrips(t *testing.T) {
	data := sourceArchive(t, 3)
	dst := newStore(t)
	ctx := context.Background()

	result, err := NewReconciler(dst).Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, models.ImportSuccess, result.Status)
	assert.Equal(t, 3, result.POIsImported)
	assert.Zero(t, result.POIsSkipped)
	assert.Zero(t, result.ImagesFailed)

	pois, err := dst.ListPOIsByTrail(ctx, "clonfert-graveyard", true)
	require.NoError(t, err)
	require.Len(t, pois, 3)
	assert.Equal(t, 1, pois[0].Sequence)
	assert.NotEmpty(t, pois[0].PhotoBlob)
	assert.NotEmpty(t, pois[0].ThumbnailBlob)
	assert.True(t, pois[0].Completed)

	trail, err := dst.GetTrail(ctx, "clonfert-graveyard")
	require.NoError(t, err)
	require.NotNil(t, trail)
	assert.Equal(t, 4, trail.NextSequence, "sequence counter travels with the trail")

	brochure, err := dst.GetBrochureSetup(ctx, "clonfert-graveyard", true)
	require.NoError(t, err)
	require.NotNil(t, brochure)
	assert.Equal(t, "Clonfert Graveyard Trail", brochure.CoverTitle)
	assert.NotEmpty(t, brochure.CoverPhotoBlob)
}

func TestCorruptedArchiveReportsErrorResult(t *testing.T) {
	dst := newStore(t)
	r := NewReconciler(dst)

	result, err := r.Import(context.Background(), []byte("definitely not a zip"))
	require.NoError(t, err, "a bad archive is an outcome, not a failure")
	assert.Equal(t, models.ImportError, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.False(t, r.HasPendingConflict())
}

func TestConflictWritesNothingUntilResolved(t *testing.T) {
	data := sourceArchive(t, 2)
	dst := newStore(t)
	ctx := context.Background()

	// Same group name, so the local graveyard trail collides.
	_, err := dst.CreateUserProfile(ctx, "Pat", "Clonfert", "pat@example.com")
	require.NoError(t, err)
	local, err := dst.CreatePOI(ctx, db.CreatePOIInput{
		TrailID:   "clonfert-graveyard",
		PhotoBlob: []byte("local-photo"),
		SiteName:  "Local Site",
	})
	require.NoError(t, err)

	r := NewReconciler(dst)
	result, err := r.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, models.ImportConflict, result.Status)
	assert.Equal(t, "clonfert-graveyard", result.TrailID)
	require.NotNil(t, result.ExistingUpdatedAt)
	require.NotNil(t, result.IncomingUpdatedAt)
	assert.True(t, r.HasPendingConflict())

	// Local data is untouched while the decision is pending.
	pois, err := dst.ListPOIsByTrail(ctx, "clonfert-graveyard", false)
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, local.ID, pois[0].ID)
}

func TestResolveKeepLeavesLocalUnchanged(t *testing.T) {
	data := sourceArchive(t, 2)
	dst := newStore(t)
	ctx := context.Background()

	_, err := dst.CreateUserProfile(ctx, "Pat", "Clonfert", "")
	require.NoError(t, err)
	local, err := dst.CreatePOI(ctx, db.CreatePOIInput{
		TrailID:   "clonfert-graveyard",
		PhotoBlob: []byte("local-photo"),
	})
	require.NoError(t, err)

	r := NewReconciler(dst)
	result, err := r.Import(ctx, data)
	require.NoError(t, err)
	require.Equal(t, models.ImportConflict, result.Status)

	kept, err := r.Resolve(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, models.ImportSuccess, kept.Status)
	assert.Zero(t, kept.POIsImported)
	assert.False(t, r.HasPendingConflict())

	pois, err := dst.ListPOIsByTrail(ctx, "clonfert-graveyard", false)
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, local.ID, pois[0].ID)
}

func TestResolveOverwriteMatchesArchiveExactly(t *testing.T) {
	data := sourceArchive(t, 2)
	dst := newStore(t)
	ctx := context.Background()

	_, err := dst.CreateUserProfile(ctx, "Pat", "Clonfert", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := dst.CreatePOI(ctx, db.CreatePOIInput{
			TrailID:   "clonfert-graveyard",
			PhotoBlob: []byte("local-photo"),
			SiteName:  "Local Only",
		})
		require.NoError(t, err)
	}

	r := NewReconciler(dst)
	result, err := r.Import(ctx, data)
	require.NoError(t, err)
	require.Equal(t, models.ImportConflict, result.Status)

	resolved, err := r.Resolve(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, models.ImportSuccess, resolved.Status)
	assert.Equal(t, 2, resolved.POIsImported)

	pois, err := dst.ListPOIsByTrail(ctx, "clonfert-graveyard", false)
	require.NoError(t, err)
	require.Len(t, pois, 2, "trail content must match the archive, local extras gone")
	for _, p := range pois {
		assert.Equal(t, "Site", p.SiteName)
	}

	// The replaced third POI gets a queued remote delete; the two
	// overlapping ids end as upserts.
	var op string
	require.NoError(t, dst.DB().QueryRow(
		"SELECT op FROM sync_queue WHERE kind = 'poi' AND entity_id = 'clonfert-graveyard-03'",
	).Scan(&op))
	assert.Equal(t, "delete", op)
	require.NoError(t, dst.DB().QueryRow(
		"SELECT op FROM sync_queue WHERE kind = 'poi' AND entity_id = 'clonfert-graveyard-01'",
	).Scan(&op))
	assert.Equal(t, "upsert", op)
}

func TestNewerConflictingImportReplacesHeldArchive(t *testing.T) {
	twoPOIs := sourceArchive(t, 2)
	onePOI := sourceArchive(t, 1)
	dst := newStore(t)
	ctx := context.Background()

	_, err := dst.CreateUserProfile(ctx, "Pat", "Clonfert", "")
	require.NoError(t, err)
	_, err = dst.CreatePOI(ctx, db.CreatePOIInput{
		TrailID:   "clonfert-graveyard",
		PhotoBlob: []byte("local-photo"),
	})
	require.NoError(t, err)

	r := NewReconciler(dst)
	result, err := r.Import(ctx, twoPOIs)
	require.NoError(t, err)
	require.Equal(t, models.ImportConflict, result.Status)

	// The operator picks a different file before deciding; the later
	// archive is the one a subsequent overwrite lands.
	result, err = r.Import(ctx, onePOI)
	require.NoError(t, err)
	require.Equal(t, models.ImportConflict, result.Status)

	resolved, err := r.Resolve(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved.POIsImported)

	pois, err := dst.ListPOIsByTrail(ctx, "clonfert-graveyard", false)
	require.NoError(t, err)
	assert.Len(t, pois, 1)
}

func TestResolveWithoutPendingConflictFails(t *testing.T) {
	r := NewReconciler(newStore(t))
	_, err := r.Resolve(context.Background(), true)
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
}

// rebuildArchive re-packs an archive with the given mutation applied to
// its manifest and file set.
func rebuildArchive(t *testing.T, data []byte, mutate func(m *Manifest, files map[string][]byte)) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string][]byte{}
	var manifest Manifest
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content := make([]byte, 0, f.UncompressedSize64)
		buf := bytes.NewBuffer(content)
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		rc.Close()
		if f.Name == manifestName {
			require.NoError(t, json.Unmarshal(buf.Bytes(), &manifest))
			continue
		}
		files[f.Name] = buf.Bytes()
	}

	mutate(&manifest, files)

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	manifestJSON, err := json.Marshal(manifest)
	require.NoError(t, err)
	w, err := zw.Create(manifestName)
	require.NoError(t, err)
	_, err = w.Write(manifestJSON)
	require.NoError(t, err)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return out.Bytes()
}

func TestInvalidRecordsAndMissingImagesAreCounted(t *testing.T) {
	data := sourceArchive(t, 3)

	data = rebuildArchive(t, data, func(m *Manifest, files map[string][]byte) {
		// Record 2 becomes invalid; record 3 loses its image asset.
		m.POIs[1].Sequence = 40
		delete(files, imageDir+m.POIs[2].Filename)
	})

	result, err := NewReconciler(newStore(t)).Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, models.ImportSuccess, result.Status)
	assert.Equal(t, 1, result.POIsImported)
	assert.Equal(t, 1, result.POIsSkipped)
	assert.Equal(t, 1, result.ImagesFailed)
}

func TestMissingThumbnailIsRegenerated(t *testing.T) {
	data := sourceArchive(t, 1)
	data = rebuildArchive(t, data, func(m *Manifest, files map[string][]byte) {
		delete(files, thumbDir+m.POIs[0].Filename)
	})

	dst := newStore(t)
	ctx := context.Background()
	result, err := NewReconciler(dst).Import(ctx, data)
	require.NoError(t, err)
	require.Equal(t, 1, result.POIsImported)

	poi, err := dst.GetPOI(ctx, "clonfert-graveyard-01", true)
	require.NoError(t, err)
	assert.NotEmpty(t, poi.ThumbnailBlob, "thumbnail should be rebuilt from the full image")
}

func TestUnsupportedManifestVersionRejected(t *testing.T) {
	data := sourceArchive(t, 1)
	data = rebuildArchive(t, data, func(m *Manifest, _ map[string][]byte) {
		m.Version = 99
	})

	result, err := NewReconciler(newStore(t)).Import(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, models.ImportError, result.Status)
	assert.Contains(t, result.ErrorMessage, "version")
}
