// Package scheduler drives periodic sync runs and accepts manual
// triggers. It never runs while offline; the connectivity monitor fires
// a trigger on the offline-to-online transition instead.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/memorytrail/trailcore/internal/logging"
	enginepkg "github.com/memorytrail/trailcore/internal/sync"
)

// Scheduler owns the sync cadence.
type Scheduler struct {
	engine   *enginepkg.Engine
	interval time.Duration
	online   func() bool

	trigger chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a scheduler. online reports current connectivity; while it
// returns false both the ticker and manual triggers are skipped.
func New(engine *enginepkg.Engine, interval time.Duration, online func() bool) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		online:   online,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the scheduling loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop halts the loop and waits for any in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// TriggerSync requests a run outside the regular cadence. The request
// coalesces: triggering while a trigger is already pending is a no-op,
// and the engine itself ignores triggers that land mid-run.
func (s *Scheduler) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		case <-s.trigger:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if !s.online() {
		logging.Debug("sync skipped, offline")
		return
	}
	result, err := s.engine.Run(ctx)
	if err != nil {
		logging.Error("sync run failed", err)
		return
	}
	if result.Skipped {
		logging.Debug("sync trigger ignored, run already in progress")
	}
}
