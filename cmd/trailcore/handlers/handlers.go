// Package handlers exposes the core over a local HTTP API for the
// recorder UI.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/memorytrail/trailcore/internal/archive"
	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/finalize"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/netwatch"
	syncpkg "github.com/memorytrail/trailcore/internal/sync"
	"github.com/memorytrail/trailcore/internal/sync/queue"
	"github.com/memorytrail/trailcore/internal/sync/scheduler"
)

// Handler carries the wired core components.
type Handler struct {
	store      *db.Store
	outbox     *queue.Outbox
	engine     *syncpkg.Engine
	scheduler  *scheduler.Scheduler
	monitor    *netwatch.Monitor
	reconciler *archive.Reconciler
	exporter   *archive.Exporter
	finalizer  *finalize.Flow
}

// New creates the handler set.
func New(
	store *db.Store,
	outbox *queue.Outbox,
	engine *syncpkg.Engine,
	sched *scheduler.Scheduler,
	monitor *netwatch.Monitor,
	reconciler *archive.Reconciler,
	exporter *archive.Exporter,
	finalizer *finalize.Flow,
) *Handler {
	return &Handler{
		store:      store,
		outbox:     outbox,
		engine:     engine,
		scheduler:  sched,
		monitor:    monitor,
		reconciler: reconciler,
		exporter:   exporter,
		finalizer:  finalizer,
	}
}

// Router builds the API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/setup", h.Setup)
		r.Get("/profile", h.Profile)

		r.Get("/trails", h.ListTrails)
		r.Route("/trails/{trailID}", func(r chi.Router) {
			r.Get("/pois", h.ListPOIs)
			r.Post("/pois", h.CapturePOI)
			r.Get("/brochure", h.GetBrochure)
			r.Put("/brochure", h.PutBrochure)
			r.Get("/export", h.Export)
		})
		r.Route("/pois/{poiID}", func(r chi.Router) {
			r.Get("/", h.GetPOI)
			r.Patch("/", h.UpdatePOI)
			r.Delete("/", h.DeletePOI)
		})

		r.Get("/sync/status", h.SyncStatus)
		r.Post("/sync/trigger", h.TriggerSync)

		r.Post("/import", h.Import)
		r.Post("/import/resolve", h.ResolveImport)
		r.Post("/import/reset", h.ResetImport)

		r.Post("/archive", h.Archive)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", err)
	}
}

var statusByCode = map[apperr.ErrorCode]int{
	apperr.ErrNotFound:         http.StatusNotFound,
	apperr.ErrValidation:       http.StatusBadRequest,
	apperr.ErrOffline:          http.StatusServiceUnavailable,
	apperr.ErrCorruptedArchive: http.StatusBadRequest,
	apperr.ErrConflictDetected: http.StatusConflict,
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.ErrValidation, "invalid request body", err)
	}
	return nil
}
