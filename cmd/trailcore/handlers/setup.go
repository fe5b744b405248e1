package handlers

import (
	"net/http"
)

type setupRequest struct {
	Name      string `json:"name"`
	GroupName string `json:"groupName"`
	Email     string `json:"email"`
}

// Setup runs the one-time device setup: profile plus both trails.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.store.CreateUserProfile(r.Context(), req.Name, req.GroupName, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// Profile returns the device profile, with setup state for first-launch
// detection.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.GetUserProfile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	done, err := h.store.SetupComplete(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile":       profile,
		"setupComplete": done,
	})
}
