// Package service implements component K, the Membership Service facade:
// the client-visible surface (StartSeed, Join, GetMemberList, GetClusterMetadata,
// Subscribe, Shutdown) that a process embeds to participate in a Rapid
// cluster, on top of the per-node internal/core/statemachine.Actor
// (spec.md §6 Facade operations).
package service

import (
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/statemachine"
)

// Config holds the facade's own tuning parameters (spec.md §6: joinAttempts,
// joinDelay, messagingClientJoinRequestTimeout) plus the embedded Actor's.
type Config struct {
	Actor statemachine.Config

	// JoinAttempts bounds the client-side join retry loop.
	JoinAttempts int
	// JoinDelay is how long Join waits before retrying after
	// HOSTNAME_ALREADY_IN_RING or VIEW_CHANGE_IN_PROGRESS.
	JoinDelay time.Duration
	// JoinRequestTimeout bounds a single outbound JoinMessage RPC — the one
	// place a Rapid node's own client logic blocks synchronously on a peer
	// (spec.md §5 "join path" suspension point).
	JoinRequestTimeout time.Duration
}

// DefaultConfig returns spec.md §6's defaults: joinAttempts=10, joinDelay=5s.
func DefaultConfig() Config {
	return Config{
		Actor:              statemachine.DefaultConfig(),
		JoinAttempts:       10,
		JoinDelay:          5 * time.Second,
		JoinRequestTimeout: 10 * time.Second,
	}
}

// Member mirrors statemachine.Member — the facade re-exports it so callers
// constructing a seed node's initial membership never import
// internal/core/statemachine directly.
type Member = statemachine.Member

// NodeStatusChange re-exports statemachine.NodeStatusChange for the same
// reason.
type NodeStatusChange = statemachine.NodeStatusChange

// Endpoint and Metadata are re-exported for callers building a Join request
// without reaching into internal/core/membership.
type Endpoint = membership.Endpoint
type Metadata = membership.Metadata
type NodeID = membership.NodeId
