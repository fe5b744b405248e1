package handlers

import (
	"net/http"
	"time"
)

// SyncStatus reports connectivity, queue depth, and the outcome of the
// most recent run.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.outbox.StatsByKind(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	lastSynced, err := h.store.LastSyncedAt(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var lastSyncedAt *string
	if !lastSynced.IsZero() {
		s := lastSynced.Format(time.RFC3339)
		lastSyncedAt = &s
	}
	var syncError *string
	if err := h.engine.SyncError(); err != nil {
		s := err.Error()
		syncError = &s
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online":       h.monitor.Online(),
		"syncing":      h.engine.Running(),
		"pending":      stats,
		"pendingTotal": stats.Total(),
		"lastSyncedAt": lastSyncedAt,
		"syncError":    syncError,
	})
}

// TriggerSync requests an out-of-cadence sync run. The request is
// accepted even when a run is in flight; the engine ignores the extra
// trigger.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.scheduler.TriggerSync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
