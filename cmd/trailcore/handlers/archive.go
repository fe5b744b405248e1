package handlers

import (
	"net/http"

	"github.com/memorytrail/trailcore/internal/finalize"
)

// Archive runs the end-of-project flow: a final push of every trail,
// then a full device wipe. The caller must attest that the zip export
// and the brochure PDF are already in hand.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	var confirm finalize.Confirmation
	if err := decodeBody(r, &confirm); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.finalizer.Run(r.Context(), confirm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
