// Package failuredetector implements the per-edge AdaptiveAccrualFailureDetector
// and the cooperative runner that feeds it heartbeats via best-effort probing
// (spec.md §4.D/§4.E).
package failuredetector

import (
	"errors"
	"time"
)

// ErrInvalidParameters is returned by New when θ, N_max or α are non-positive.
var ErrInvalidParameters = errors.New("failuredetector: theta, nMax and alpha must be positive")

// Clock returns a monotonic timestamp in nanoseconds. Production callers use
// DefaultClock; tests inject a deterministic stand-in.
type Clock func() int64

// DefaultClock reads the runtime monotonic clock.
func DefaultClock() int64 { return time.Now().UnixNano() }

// Detector is one edge's AdaptiveAccrualFailureDetector. It is not safe for
// concurrent use; each instance is owned by exactly one Runner.
type Detector struct {
	theta float64
	nMax  int
	alpha float64
	clock Clock

	intervals    []int64
	hasFreshness bool
	freshness    int64
}

// New creates a Detector with the given theta/nMax/alpha parameters and
// clock source.
func New(theta float64, nMax int, alpha float64, clock Clock) (*Detector, error) {
	if theta <= 0 || nMax <= 0 || alpha <= 0 {
		return nil, ErrInvalidParameters
	}
	if clock == nil {
		clock = DefaultClock
	}
	return &Detector{
		theta:     theta,
		nMax:      nMax,
		alpha:     alpha,
		clock:     clock,
		intervals: make([]int64, 0, nMax),
	}, nil
}

// Heartbeat records one liveness observation at clock(). The first call only
// establishes the freshness point; it records no interval.
func (d *Detector) Heartbeat() {
	t := d.clock()
	if !d.hasFreshness {
		d.freshness = t
		d.hasFreshness = true
		return
	}
	delta := t - d.freshness
	d.push(delta)
	d.freshness = t
}

func (d *Detector) push(delta int64) {
	d.intervals = append(d.intervals, delta)
	if len(d.intervals) > d.nMax {
		d.intervals = d.intervals[1:]
	}
}

// Suspicion returns the fraction of recorded intervals that fit under the
// current silence α·(t−freshness). It is zero until a freshness point and at
// least one interval exist.
func (d *Detector) Suspicion(t int64) float64 {
	if !d.hasFreshness || len(d.intervals) == 0 {
		return 0
	}
	threshold := int64(d.alpha * float64(t-d.freshness))
	var below int
	for _, v := range d.intervals {
		if v <= threshold {
			below++
		}
	}
	return float64(below) / float64(len(d.intervals))
}

// IsAvailable reports whether the edge is still considered live at t.
func (d *Detector) IsAvailable(t int64) bool {
	return d.Suspicion(t) < d.theta
}
