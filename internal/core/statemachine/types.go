// Package statemachine implements component J, the RapidStateMachine: the
// single actor that owns one node's MembershipView and drives it through
// Initial -> Active -> ViewChanging -> Active transitions (and eventually
// Leaving -> Left), wiring together the cut detector, failure detector
// runners, the alert batcher, the two consensus rounds and the broadcaster
// (spec.md §4.J).
//
// Every exported method is safe to call from any goroutine: each posts onto
// the actor's single mailbox and the actual state mutation happens only on
// the actor's own loop goroutine, preserving spec.md §5's single-consumer
// invariant.
package statemachine

import (
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
)

// State is the RapidStateMachine's coarse lifecycle stage. The richer
// per-state data (postponed joiners, stashed leaves, the live consensus
// round) lives alongside it on the Actor rather than inside a variant value,
// since Go has no sum types with payloads.
type State int

const (
	StateInitial State = iota
	StateActive
	StateViewChanging
	StateLeaving
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateActive:
		return "ACTIVE"
	case StateViewChanging:
		return "VIEW_CHANGING"
	case StateLeaving:
		return "LEAVING"
	case StateLeft:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// Config holds one Actor's tuning parameters (spec.md §6 Tuning Parameters).
type Config struct {
	K, H, L int

	FailureDetectorInterval   time.Duration
	ExpectFirstHeartbeatAfter time.Duration
	FDTheta                   float64
	FDAlpha                   float64
	FDMaxSampleSize           int
	FDBootstrapLimit          int

	BatchingWindow time.Duration

	PaxosBaseFallback time.Duration

	BroadcastTimeout time.Duration
}

// DefaultConfig returns the tuning parameters spec.md §6 lists as defaults.
func DefaultConfig() Config {
	return Config{
		K: membership.DefaultK,
		H: 9,
		L: 4,

		FailureDetectorInterval:   1 * time.Second,
		ExpectFirstHeartbeatAfter: 5 * time.Second,
		FDTheta:                   0.2,
		FDAlpha:                   0.9,
		FDMaxSampleSize:           1000,
		FDBootstrapLimit:          30,

		BatchingWindow: 100 * time.Millisecond,

		PaxosBaseFallback: 10 * time.Second,

		BroadcastTimeout: 5 * time.Second,
	}
}

// NodeStatusChange is one endpoint's membership transition, reported to
// subscribers as part of a ViewChange event.
type NodeStatusChange struct {
	Endpoint membership.Endpoint
	Status   membership.EdgeStatus
	NodeID   membership.NodeId
	Metadata membership.Metadata
}
