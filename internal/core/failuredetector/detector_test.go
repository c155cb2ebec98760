package failuredetector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *int64) Clock {
	return func() int64 { return *t }
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(0, 10, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = New(1, 0, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = New(1, 10, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestFirstHeartbeatOnlySetsFreshness(t *testing.T) {
	var now int64 = 1000
	d, err := New(1, 10, 1, fixedClock(&now))
	require.NoError(t, err)

	d.Heartbeat()
	assert.Equal(t, 0.0, d.Suspicion(now))
	assert.True(t, d.IsAvailable(now))
}

func TestSuspicionZeroWithoutHistory(t *testing.T) {
	var now int64 = 1000
	d, err := New(1, 10, 1, fixedClock(&now))
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Suspicion(now))
}

func TestSuspicionRisesAsSilenceExceedsHistory(t *testing.T) {
	var now int64 = 0
	d, err := New(0.5, 10, 1, fixedClock(&now))
	require.NoError(t, err)

	d.Heartbeat()
	now = 100
	d.Heartbeat() // interval 100
	now = 200
	d.Heartbeat() // interval 100

	// silence of 50ns: threshold = alpha*50 = 50 < both recorded intervals (100,100).
	assert.Equal(t, 0.0, d.Suspicion(250))
	// silence of 150ns: threshold = 150 >= both intervals.
	assert.Equal(t, 1.0, d.Suspicion(350))
}

// Property 5: FD monotonicity. Holding the heartbeat history fixed,
// suspicion(t) is non-decreasing in t between consecutive heartbeats.
func TestSuspicionMonotonicBetweenHeartbeats(t *testing.T) {
	var now int64 = 0
	d, err := New(0.5, 10, 1, fixedClock(&now))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		now += 100
		d.Heartbeat()
	}
	last := now

	prev := d.Suspicion(last)
	for delta := int64(1); delta <= 500; delta += 7 {
		got := d.Suspicion(last + delta)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestDeterministicGivenIdenticalHistory(t *testing.T) {
	build := func() *Detector {
		var now int64 = 0
		d, err := New(0.5, 4, 1, fixedClock(&now))
		require.NoError(t, err)
		for i := 0; i < 6; i++ {
			now += 50
			d.Heartbeat()
		}
		return d
	}

	d1 := build()
	d2 := build()
	assert.Equal(t, d1.Suspicion(1000), d2.Suspicion(1000))
	assert.Equal(t, d1.IsAvailable(1000), d2.IsAvailable(1000))
}

func TestRingBufferDropsOldestPastNMax(t *testing.T) {
	var now int64 = 0
	d, err := New(0.9, 3, 1, fixedClock(&now))
	require.NoError(t, err)

	// First interval is huge; if retained it would keep suspicion low
	// forever. Once evicted by NMax=3, suspicion should climb.
	d.Heartbeat()
	now += 10_000
	d.Heartbeat() // interval 10000
	now += 10
	d.Heartbeat() // interval 10
	now += 10
	d.Heartbeat() // interval 10
	now += 10
	d.Heartbeat() // interval 10 -> evicts the 10000 interval

	assert.Len(t, d.intervals, 3)
	assert.NotContains(t, d.intervals, int64(10_000))
}
