// Package media validates and transforms POI imagery.
package media

import (
	"bytes"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	apperr "github.com/memorytrail/trailcore/internal/errors"
)

const (
	// ThumbnailWidth is the bounding width for list thumbnails.
	ThumbnailWidth = 320

	thumbnailQuality = 80
)

// SniffImage detects the content type of a blob and rejects anything
// that is not an image.
func SniffImage(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", apperr.New(apperr.ErrValidation, "empty image data")
	}
	mt := mimetype.Detect(blob)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", apperr.New(apperr.ErrValidation, "not an image: "+mt.String())
	}
	return mt.String(), nil
}

// Thumbnail produces a JPEG thumbnail bounded to ThumbnailWidth,
// preserving aspect ratio. The source may be any registered image
// format, including WebP.
func Thumbnail(blob []byte) ([]byte, error) {
	if _, err := SniffImage(blob); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(blob), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "failed to decode image", err)
	}

	thumb := imaging.Resize(src, ThumbnailWidth, 0, imaging.Lanczos)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, apperr.Wrap(apperr.ErrInternal, "failed to encode thumbnail", err)
	}
	return out.Bytes(), nil
}
