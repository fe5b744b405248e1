package handlers

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/media"
	"github.com/memorytrail/trailcore/internal/models"
)

// ListTrails returns the device group's trails.
func (h *Handler) ListTrails(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.GetUserProfile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeError(w, apperr.New(apperr.ErrValidation, "setup has not run"))
		return
	}
	trails, err := h.store.ListTrailsByGroup(r.Context(), profile.GroupCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trails)
}

// ListPOIs returns a trail's POIs, metadata only.
func (h *Handler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	pois, err := h.store.ListPOIsByTrail(r.Context(), chi.URLParam(r, "trailID"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pois)
}

type captureRequest struct {
	// Photo is the captured image, base64 encoded. Any common image
	// format is accepted; the thumbnail is derived server side.
	Photo       string   `json:"photo"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	CapturedAt  string   `json:"capturedAt,omitempty"`
	SiteName    string   `json:"siteName"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Story       string   `json:"story"`
	URL         string   `json:"url"`
	Condition   string   `json:"condition"`
	Notes       string   `json:"notes"`
}

// CapturePOI records a new POI on a trail.
func (h *Handler) CapturePOI(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	photo, err := base64.StdEncoding.DecodeString(req.Photo)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.ErrValidation, "photo is not valid base64", err))
		return
	}
	if _, err := media.SniffImage(photo); err != nil {
		writeError(w, err)
		return
	}
	thumb, err := media.Thumbnail(photo)
	if err != nil {
		writeError(w, err)
		return
	}

	var capturedAt time.Time
	if req.CapturedAt != "" {
		capturedAt, err = time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeError(w, apperr.Wrap(apperr.ErrValidation, "capturedAt is not RFC3339", err))
			return
		}
	}

	poi, err := h.store.CreatePOI(r.Context(), db.CreatePOIInput{
		TrailID:       chi.URLParam(r, "trailID"),
		PhotoBlob:     photo,
		ThumbnailBlob: thumb,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Accuracy:      req.Accuracy,
		CapturedAt:    capturedAt,
		SiteName:      req.SiteName,
		Category:      req.Category,
		Description:   req.Description,
		Story:         req.Story,
		URL:           req.URL,
		Condition:     req.Condition,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poi)
}

// GetPOI returns one POI with metadata only.
func (h *Handler) GetPOI(w http.ResponseWriter, r *http.Request) {
	poi, err := h.store.GetPOI(r.Context(), chi.URLParam(r, "poiID"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	if poi == nil {
		writeError(w, apperr.New(apperr.ErrNotFound, "poi not found"))
		return
	}
	writeJSON(w, http.StatusOK, poi)
}

// UpdatePOI applies a partial edit to a POI.
func (h *Handler) UpdatePOI(w http.ResponseWriter, r *http.Request) {
	var upd models.POIUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	poi, err := h.store.UpdatePOI(r.Context(), chi.URLParam(r, "poiID"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poi)
}

// DeletePOI removes a POI. Its trail slot is not reissued.
func (h *Handler) DeletePOI(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePOI(r.Context(), chi.URLParam(r, "poiID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type brochureRequest struct {
	CoverTitle  string `json:"coverTitle"`
	CoverPhoto  string `json:"coverPhoto,omitempty"`
	GroupName   string `json:"groupName"`
	FunderText  string `json:"funderText"`
	CreditsText string `json:"creditsText"`
	IntroText   string `json:"introText"`
	MapImage    string `json:"mapImage,omitempty"`
}

// PutBrochure saves a trail's brochure setup wholesale.
func (h *Handler) PutBrochure(w http.ResponseWriter, r *http.Request) {
	var req brochureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cover, err := base64.StdEncoding.DecodeString(req.CoverPhoto)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.ErrValidation, "coverPhoto is not valid base64", err))
		return
	}
	mapImage, err := base64.StdEncoding.DecodeString(req.MapImage)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.ErrValidation, "mapImage is not valid base64", err))
		return
	}

	brochure := &models.BrochureSetup{
		TrailID:        chi.URLParam(r, "trailID"),
		CoverTitle:     req.CoverTitle,
		CoverPhotoBlob: cover,
		GroupName:      req.GroupName,
		FunderText:     req.FunderText,
		CreditsText:    req.CreditsText,
		IntroText:      req.IntroText,
		MapBlob:        mapImage,
	}
	if err := h.store.PutBrochureSetup(r.Context(), brochure); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            brochure.ID,
		"setupComplete": brochure.SetupComplete(),
	})
}

// GetBrochure returns a trail's brochure setup, metadata only.
func (h *Handler) GetBrochure(w http.ResponseWriter, r *http.Request) {
	brochure, err := h.store.GetBrochureSetup(r.Context(), chi.URLParam(r, "trailID"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	if brochure == nil {
		writeError(w, apperr.New(apperr.ErrNotFound, "no brochure setup for trail"))
		return
	}
	writeJSON(w, http.StatusOK, brochure)
}

// Export streams a trail archive.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	trailID := chi.URLParam(r, "trailID")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+trailID+`.zip"`)
	if err := h.exporter.ExportTrail(r.Context(), trailID, w); err != nil {
		// Headers may already be gone; log and give up on this response.
		writeError(w, err)
	}
}
