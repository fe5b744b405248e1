// Package netwatch tracks backend reachability. Everything in the core
// treats connectivity as a property that flips at any moment; this
// monitor is the single source of truth for the current state and for
// transition notifications.
package netwatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memorytrail/trailcore/internal/logging"
)

// Probe reports whether the backend is reachable right now.
type Probe func(ctx context.Context) bool

// Monitor polls a probe and notifies listeners on state transitions.
type Monitor struct {
	probe    Probe
	interval time.Duration

	online atomic.Bool

	mu        sync.Mutex
	listeners []func(online bool)
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
}

// New creates a monitor. The device starts offline until the first probe
// says otherwise.
func New(probe Probe, interval time.Duration) *Monitor {
	return &Monitor{probe: probe, interval: interval}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnChange registers a listener for connectivity transitions. Listeners
// run on the monitor goroutine, after Online already reports the new
// state, and must return quickly.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start probes immediately, then on the configured interval.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop halts probing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	now := m.probe(ctx)
	if m.online.Swap(now) == now {
		return
	}

	logging.Info("connectivity changed", map[string]interface{}{
		"online": now,
	})
	m.mu.Lock()
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(now)
	}
}
