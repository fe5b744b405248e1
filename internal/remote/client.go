// Package remote talks to the backend row store and blob storage. All
// methods are safe to retry: row writes are upserts keyed on stable ids
// and blob uploads overwrite by deterministic filename.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
)

const maxRetries = 3

var tableByKind = map[models.EntityKind]string{
	models.KindPOI:           "pois",
	models.KindTrail:         "trails",
	models.KindBrochureSetup: "brochure_setups",
}

// Client pushes entities to the backend.
type Client struct {
	http           *resty.Client
	poiBucket      string
	brochureBucket string
}

// NewClient builds a client for the given backend.
func NewClient(baseURL, apiKey string, timeout time.Duration, poiBucket, brochureBucket string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		http.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{
		http:           http,
		poiBucket:      poiBucket,
		brochureBucket: brochureBucket,
	}
}

// Healthy probes the backend. Used by the connectivity monitor; a false
// result means offline, not broken.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	return err == nil && resp.StatusCode() < 500
}

// retry runs op with bounded exponential backoff. 4xx responses are
// permanent; everything else is worth another attempt.
func retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) upsertRow(ctx context.Context, table string, row interface{}) error {
	return retry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(row).
			SetHeader("Prefer", "resolution=merge-duplicates").
			Post("/rest/v1/" + table)
		if err != nil {
			return apperr.Wrap(apperr.ErrTransport, "upsert request failed", err)
		}
		if resp.IsError() {
			err := apperr.Newf(apperr.ErrTransport, "upsert %s returned %d", table, resp.StatusCode())
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
}

// uploadBlob stores bytes under a deterministic object path and returns
// the public URL. Re-uploads overwrite.
func (c *Client) uploadBlob(ctx context.Context, bucket, objectPath string, blob []byte, contentType string) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	err := retry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(blob).
			SetHeader("Content-Type", contentType).
			SetHeader("x-upsert", "true").
			Post(fmt.Sprintf("/storage/v1/object/%s/%s", bucket, objectPath))
		if err != nil {
			return apperr.Wrap(apperr.ErrTransport, "blob upload failed", err)
		}
		if resp.IsError() {
			err := apperr.Newf(apperr.ErrTransport, "blob upload returned %d", resp.StatusCode())
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.http.BaseURL, bucket, objectPath), nil
}

// PushTrail upserts a trail row.
func (c *Client) PushTrail(ctx context.Context, t *models.Trail, owner string) error {
	return c.upsertRow(ctx, "trails", trailToRow(t, owner))
}

// PushPOI uploads the POI's image and thumbnail, then upserts the row
// referencing them. Assets go first so a row never points at a missing
// object.
func (c *Client) PushPOI(ctx context.Context, p *models.POIRecord, owner string) error {
	photoURL, err := c.uploadBlob(ctx, c.poiBucket, p.GroupCode+"/"+p.Filename, p.PhotoBlob, "image/jpeg")
	if err != nil {
		return err
	}
	thumbURL, err := c.uploadBlob(ctx, c.poiBucket, p.GroupCode+"/thumbs/"+p.Filename, p.ThumbnailBlob, "image/jpeg")
	if err != nil {
		return err
	}
	return c.upsertRow(ctx, "pois", poiToRow(p, photoURL, thumbURL, owner))
}

// PushBrochure uploads the brochure assets, then upserts the row.
func (c *Client) PushBrochure(ctx context.Context, b *models.BrochureSetup, owner string) error {
	coverURL, err := c.uploadBlob(ctx, c.brochureBucket, b.TrailID+"/cover.jpg", b.CoverPhotoBlob, "image/jpeg")
	if err != nil {
		return err
	}
	mapURL, err := c.uploadBlob(ctx, c.brochureBucket, b.TrailID+"/map.jpg", b.MapBlob, "image/jpeg")
	if err != nil {
		return err
	}
	return c.upsertRow(ctx, "brochure_setups", brochureToRow(b, coverURL, mapURL, owner))
}

// Delete removes an entity row. A 404 means the row is already gone,
// which is the state the delete wanted; that counts as success.
func (c *Client) Delete(ctx context.Context, kind models.EntityKind, entityID string) error {
	table, ok := tableByKind[kind]
	if !ok {
		return apperr.New(apperr.ErrValidation, "unknown entity kind: "+string(kind))
	}
	return retry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("id", "eq."+entityID).
			Delete("/rest/v1/" + table)
		if err != nil {
			return apperr.Wrap(apperr.ErrTransport, "delete request failed", err)
		}
		if resp.StatusCode() == 404 {
			return nil
		}
		if resp.IsError() {
			err := apperr.Newf(apperr.ErrTransport, "delete %s returned %d", table, resp.StatusCode())
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
}

// ArchiveTrail pushes a trail's complete current state as part of the
// final archival flow: the trail row, every POI with its assets, and the
// brochure setup when one exists. The caller decides ordering across
// trails and aborts on the first error.
func (c *Client) ArchiveTrail(ctx context.Context, t *models.Trail, pois []*models.POIRecord, brochure *models.BrochureSetup, owner string) error {
	if err := c.PushTrail(ctx, t, owner); err != nil {
		return err
	}
	for _, p := range pois {
		if err := c.PushPOI(ctx, p, owner); err != nil {
			return err
		}
	}
	if brochure != nil {
		if err := c.PushBrochure(ctx, brochure, owner); err != nil {
			return err
		}
	}
	logging.Info("trail archived", map[string]interface{}{
		"trail_id": t.ID,
		"pois":     len(pois),
	})
	return nil
}
