package cutdetector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
)

func ep(host string, port int32) membership.Endpoint {
	return membership.Endpoint{Hostname: host, Port: port}
}

func observerEndpoints(n int) []membership.Endpoint {
	out := make([]membership.Endpoint, n)
	for i := range out {
		out[i] = ep("observer", int32(i))
	}
	return out
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(2, 2, 1)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 11, 1)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 9, 10)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(10, 9, 0)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

// S5: with K=10,H=8,L=2: H-1 alerts for A yield no proposal; the H-th
// yields exactly a one-element proposal [A]; a second destination B
// between L and H withholds A's proposal until B also crosses H.
func TestCutDetectorBoundary(t *testing.T) {
	d, err := New(10, 8, 2)
	require.NoError(t, err)

	a := ep("a", 1)
	b := ep("b", 2)
	observers := observerEndpoints(10)

	// 7 alerts for A: below H, no emission yet.
	for i := 0; i < 7; i++ {
		out := d.Aggregate(Alert{EdgeSrc: observers[i], EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{i}})
		assert.Nil(t, out)
	}

	// Bring B to 3 reports (between L=2 and H=8): still pending, doesn't
	// block or release A by itself.
	for i := 0; i < 3; i++ {
		out := d.Aggregate(Alert{EdgeSrc: observers[i], EdgeDst: b, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{i}})
		assert.Nil(t, out)
	}

	// 8th alert for A crosses H, but B is still in the unstable band so
	// updatesInProgress has not drained back to zero: no emission yet.
	out := d.Aggregate(Alert{EdgeSrc: observers[7], EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{7}})
	assert.Nil(t, out)

	// Drive B to H=8: now both A and B have crossed H and
	// updatesInProgress drains to zero, releasing both as one proposal.
	for i := 3; i < 8; i++ {
		out = d.Aggregate(Alert{EdgeSrc: observers[i], EdgeDst: b, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{i}})
	}
	require.NotNil(t, out)
	assert.ElementsMatch(t, []membership.Endpoint{a, b}, out)
	assert.Equal(t, 1, d.ProposalCount())
}

func TestCutDetectorSingleDestinationBoundary(t *testing.T) {
	d, err := New(10, 8, 2)
	require.NoError(t, err)
	a := ep("a", 1)
	observers := observerEndpoints(10)

	for i := 0; i < 7; i++ {
		out := d.Aggregate(Alert{EdgeSrc: observers[i], EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{i}})
		assert.Nil(t, out)
	}
	out := d.Aggregate(Alert{EdgeSrc: observers[7], EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{7}})
	require.NotNil(t, out)
	assert.Equal(t, []membership.Endpoint{a}, out)
}

func TestDuplicateRingReportIgnored(t *testing.T) {
	d, err := New(3, 2, 1)
	require.NoError(t, err)
	a := ep("a", 1)
	o := ep("o", 0)

	out := d.Aggregate(Alert{EdgeSrc: o, EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{0}})
	assert.Nil(t, out)
	// Same ring number reported again by the same (or any) source: ignored.
	out = d.Aggregate(Alert{EdgeSrc: o, EdgeDst: a, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{0}})
	assert.Nil(t, out)
}

// Property 3: cut-detector determinism under replay order. Replaying the
// same destination's per-ring reports in any order must reach the same final proposal and proposal count: only the distinct
// ring numbers recorded matter, not the arrival order.
func TestAggregateDeterministicUnderReplayOrder(t *testing.T) {
	k, h, l := 10, 8, 2
	dst := ep("a", 1)
	observers := observerEndpoints(k)

	var alerts []Alert
	for ring := 0; ring < h; ring++ {
		alerts = append(alerts, Alert{EdgeSrc: observers[ring], EdgeDst: dst, EdgeStatus: membership.EdgeStatusDown, RingNumbers: []int{ring}})
	}

	run := func(order []int) ([]membership.Endpoint, int) {
		d, err := New(k, h, l)
		require.NoError(t, err)
		var final []membership.Endpoint
		for _, idx := range order {
			if out := d.Aggregate(alerts[idx]); out != nil {
				final = append(final, out...)
			}
		}
		return final, d.ProposalCount()
	}

	baseOrder := make([]int, len(alerts))
	for i := range baseOrder {
		baseOrder[i] = i
	}
	want, wantCount := run(baseOrder)
	require.Equal(t, []membership.Endpoint{dst}, want)
	require.Equal(t, 1, wantCount)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]int(nil), baseOrder...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, gotCount := run(shuffled)
		assert.Equal(t, want, got)
		assert.Equal(t, wantCount, gotCount)
	}
}
