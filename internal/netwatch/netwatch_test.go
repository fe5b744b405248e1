package netwatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionsFireListenersOnce(t *testing.T) {
	var reachable atomic.Bool
	probe := func(context.Context) bool { return reachable.Load() }

	m := New(probe, 10*time.Millisecond)

	var transitions atomic.Int32
	var lastState atomic.Bool
	m.OnChange(func(online bool) {
		transitions.Add(1)
		lastState.Store(online)
	})

	m.Start(context.Background())
	defer m.Stop()

	// Starts offline; staying offline is not a transition.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, m.Online())
	assert.Zero(t, transitions.Load())

	// The flag flips before listeners run, so wait on the listener side
	// and only then check the published state.
	reachable.Store(true)
	require.Eventually(t, func() bool { return transitions.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.Online())
	assert.True(t, lastState.Load())

	reachable.Store(false)
	require.Eventually(t, func() bool { return transitions.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.Online())
	assert.False(t, lastState.Load())
}

func TestStopHaltsProbing(t *testing.T) {
	var probes atomic.Int32
	m := New(func(context.Context) bool {
		probes.Add(1)
		return true
	}, 5*time.Millisecond)

	m.Start(context.Background())
	require.Eventually(t, func() bool { return probes.Load() > 2 }, time.Second, time.Millisecond)
	m.Stop()

	settled := probes.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, probes.Load())
}
