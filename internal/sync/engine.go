// Package sync drains the outbox to the remote backend. Entries are
// pushed with the entity's current local state, not a snapshot from
// enqueue time, so a record edited three times offline travels once.
package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memorytrail/trailcore/internal/db"
	apperr "github.com/memorytrail/trailcore/internal/errors"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/models"
	"github.com/memorytrail/trailcore/internal/sync/queue"
)

// Remote is the transport the engine pushes through.
type Remote interface {
	PushTrail(ctx context.Context, t *models.Trail, owner string) error
	PushPOI(ctx context.Context, p *models.POIRecord, owner string) error
	PushBrochure(ctx context.Context, b *models.BrochureSetup, owner string) error
	Delete(ctx context.Context, kind models.EntityKind, entityID string) error
}

// RunResult summarizes one drain attempt.
type RunResult struct {
	// Skipped is true when another run was already in progress; nothing
	// was attempted.
	Skipped   bool
	Processed int
	Succeeded int
	Failed    int
}

// Engine drains the sync queue. At most one run is in flight at a time;
// a trigger during a run is ignored, not queued.
type Engine struct {
	store     *db.Store
	outbox    *queue.Outbox
	remote    Remote
	batchSize int

	running atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// NewEngine creates a sync engine.
func NewEngine(store *db.Store, outbox *queue.Outbox, remote Remote, batchSize int) *Engine {
	if batchSize < 1 {
		batchSize = 25
	}
	return &Engine{
		store:     store,
		outbox:    outbox,
		remote:    remote,
		batchSize: batchSize,
	}
}

// SyncError returns the error from the most recent run, or nil. It stays
// observable until the next fully successful run clears it.
func (e *Engine) SyncError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Running reports whether a drain is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// Run drains the queue oldest-first in batches. A failed entry stays
// queued with its attempt counter bumped and does not block the rest of
// the batch. The last-synced timestamp advances only on a clean full
// drain.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return RunResult{Skipped: true}, nil
	}
	defer e.running.Store(false)

	profile, err := e.store.GetUserProfile(ctx)
	if err != nil {
		e.setLastErr(err)
		return RunResult{}, err
	}
	if profile == nil {
		// Nothing can be queued before setup.
		return RunResult{}, nil
	}
	owner := profile.SyncIdentity()

	var result RunResult
	attempted := map[string]bool{}
	for {
		if err := ctx.Err(); err != nil {
			e.setLastErr(err)
			return result, err
		}

		batch, err := e.outbox.DequeueBatch(ctx, e.batchSize+len(attempted))
		if err != nil {
			e.setLastErr(err)
			return result, err
		}

		fresh := 0
		for _, entry := range batch {
			if attempted[entry.ID] {
				continue
			}
			attempted[entry.ID] = true
			fresh++
			result.Processed++

			if err := e.pushEntry(ctx, entry, owner); err != nil {
				if apperr.Is(err, apperr.ErrDatabase) {
					// Local read failures poison the whole run.
					e.setLastErr(err)
					return result, err
				}
				result.Failed++
				logging.Warn("push failed, entry stays queued", map[string]interface{}{
					"entry_id":  entry.ID,
					"kind":      entry.Kind,
					"entity_id": entry.EntityID,
					"error":     err.Error(),
				})
				if mErr := e.outbox.MarkFailed(ctx, entry.ID, err); mErr != nil {
					e.setLastErr(mErr)
					return result, mErr
				}
				continue
			}

			result.Succeeded++
			if mErr := e.outbox.MarkSucceeded(ctx, entry.ID); mErr != nil {
				e.setLastErr(mErr)
				return result, mErr
			}
		}
		if fresh == 0 {
			break
		}
	}

	if result.Failed > 0 {
		err := apperr.Newf(apperr.ErrSyncFailed, "%d of %d entries failed to sync", result.Failed, result.Processed)
		e.setLastErr(err)
		return result, err
	}

	if err := e.store.SetLastSyncedAt(ctx, time.Now().UTC()); err != nil {
		e.setLastErr(err)
		return result, err
	}
	e.setLastErr(nil)
	if result.Processed > 0 {
		logging.Info("sync run completed", map[string]interface{}{
			"processed": result.Processed,
		})
	}
	return result, nil
}

// pushEntry sends one queue entry using the entity's current state. An
// upsert whose entity vanished locally is stale and settles as success;
// the delete that removed it has its own queue entry.
func (e *Engine) pushEntry(ctx context.Context, entry models.SyncQueueEntry, owner string) error {
	if entry.Op == models.OpDelete {
		return e.remote.Delete(ctx, entry.Kind, entry.EntityID)
	}

	switch entry.Kind {
	case models.KindTrail:
		trail, err := e.store.GetTrail(ctx, entry.EntityID)
		if err != nil {
			return err
		}
		if trail == nil {
			return nil
		}
		return e.remote.PushTrail(ctx, trail, owner)
	case models.KindPOI:
		poi, err := e.store.GetPOI(ctx, entry.EntityID, true)
		if err != nil {
			return err
		}
		if poi == nil {
			return nil
		}
		return e.remote.PushPOI(ctx, poi, owner)
	case models.KindBrochureSetup:
		brochure, err := e.store.GetBrochureSetup(ctx, entry.EntityID, true)
		if err != nil {
			return err
		}
		if brochure == nil {
			return nil
		}
		return e.remote.PushBrochure(ctx, brochure, owner)
	default:
		return fmt.Errorf("unknown entity kind %q", entry.Kind)
	}
}
