package handlers

import (
	"io"
	"net/http"

	apperr "github.com/memorytrail/trailcore/internal/errors"
)

// maxArchiveSize caps uploads at 256 MiB, comfortably above a full
// 12-POI trail with photos.
const maxArchiveSize = 256 << 20

// Import receives an archive as the request body and lands it. The
// response is always an ImportResult; a conflict leaves the archive
// parked until ResolveImport or ResetImport.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxArchiveSize))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.ErrValidation, "failed to read archive", err))
		return
	}

	result, err := h.reconciler.Import(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	Overwrite bool `json:"overwrite"`
}

// ResolveImport settles a pending conflict with the user's decision.
func (h *Handler) ResolveImport(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.reconciler.Resolve(r.Context(), req.Overwrite)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResetImport discards a pending conflict without touching local data.
func (h *Handler) ResetImport(w http.ResponseWriter, r *http.Request) {
	h.reconciler.Reset()
	w.WriteHeader(http.StatusNoContent)
}
