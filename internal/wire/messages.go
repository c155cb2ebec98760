// Package wire defines the peer-to-peer message set of spec.md §6: a
// closed discriminated union of requests and responses exchanged over one
// RPC endpoint, sendRequest(RapidRequest) -> RapidResponse.
//
// Each concrete type is registered with encoding/gob in init() so it can be
// framed by internal/transport without a reflection-based schema.
package wire

import (
	"encoding/gob"

	"github.com/rapidcluster/rapid/internal/core/membership"
)

// Request is the sealed RapidRequest union.
type Request interface {
	isRequest()
}

// Response is the sealed RapidResponse union.
type Response interface {
	isResponse()
}

// JoinMessage is a joiner's request to be admitted to the ring.
type JoinMessage struct {
	Sender          membership.Endpoint
	NodeID          membership.NodeId
	Metadata        membership.Metadata
	ConfigurationID uint64
}

func (JoinMessage) isRequest() {}

// AlertMessage is one observer's statement about one edge.
type AlertMessage struct {
	EdgeSrc         membership.Endpoint
	EdgeDst         membership.Endpoint
	EdgeStatus      membership.EdgeStatus
	ConfigurationID uint64
	RingNumber      []int
	NodeID          *membership.NodeId
	Metadata        membership.Metadata
}

// BatchedAlertMessage packs a sender's alerts accumulated within one
// batching window.
type BatchedAlertMessage struct {
	Sender          membership.Endpoint
	Alerts          []AlertMessage
	ConfigurationID uint64
}

func (BatchedAlertMessage) isRequest() {}

// ProbeMessage is a failure-detector liveness probe.
type ProbeMessage struct {
	Sender membership.Endpoint
}

func (ProbeMessage) isRequest() {}

// FastRoundPhase2bMessage is the single-phase Fast Paxos vote.
type FastRoundPhase2bMessage struct {
	Sender          membership.Endpoint
	ConfigurationID uint64
	Endpoints       []membership.Endpoint
}

func (FastRoundPhase2bMessage) isRequest() {}

// Rank is a classic-Paxos ballot number: (round, nodeIndex) compared
// lexicographically.
type Rank struct {
	Round     int64
	NodeIndex uint64
}

// Less reports whether r sorts strictly before o.
func (r Rank) Less(o Rank) bool {
	if r.Round != o.Round {
		return r.Round < o.Round
	}
	return r.NodeIndex < o.NodeIndex
}

// Equal reports rank equality.
func (r Rank) Equal(o Rank) bool { return r.Round == o.Round && r.NodeIndex == o.NodeIndex }

// Phase1aMessage is the classic-Paxos coordinator's prepare.
type Phase1aMessage struct {
	Sender          membership.Endpoint
	ConfigurationID uint64
	Rank            Rank
}

func (Phase1aMessage) isRequest() {}

// Phase1bMessage is an acceptor's promise, carrying its highest vote.
type Phase1bMessage struct {
	Sender          membership.Endpoint
	ConfigurationID uint64
	Rnd             Rank
	Vrnd            Rank
	Vval            []membership.Endpoint
}

func (Phase1bMessage) isRequest() {}

// Phase2aMessage is the coordinator's accept request for a chosen value.
type Phase2aMessage struct {
	Sender          membership.Endpoint
	ConfigurationID uint64
	Rnd             Rank
	Vval            []membership.Endpoint
}

func (Phase2aMessage) isRequest() {}

// Phase2bMessage is an acceptor's vote for a value at a rank.
type Phase2bMessage struct {
	Sender          membership.Endpoint
	ConfigurationID uint64
	Rnd             Rank
	Vval            []membership.Endpoint
}

func (Phase2bMessage) isRequest() {}

// LeaveMessage announces a graceful departure.
type LeaveMessage struct {
	Sender membership.Endpoint
}

func (LeaveMessage) isRequest() {}

// JoinStatusCode is the status field of a JoinResponse.
type JoinStatusCode int

const (
	HostnameAlreadyInRing JoinStatusCode = iota
	UUIDAlreadyInRing
	SameNodeAlreadyInRing
	SafeToJoin
	ViewChangeInProgress
)

func (c JoinStatusCode) String() string {
	switch c {
	case HostnameAlreadyInRing:
		return "HOSTNAME_ALREADY_IN_RING"
	case UUIDAlreadyInRing:
		return "UUID_ALREADY_IN_RING"
	case SameNodeAlreadyInRing:
		return "SAME_NODE_ALREADY_IN_RING"
	case SafeToJoin:
		return "SAFE_TO_JOIN"
	case ViewChangeInProgress:
		return "VIEW_CHANGE_IN_PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// JoinResponse answers a JoinMessage.
type JoinResponse struct {
	Sender          membership.Endpoint
	StatusCode      JoinStatusCode
	ConfigurationID uint64
	Endpoints       []membership.Endpoint
	Identifiers     []membership.NodeId
	MetadataKeys    []membership.Endpoint
	MetadataValues  []membership.Metadata
}

func (JoinResponse) isResponse() {}

// EmptyResponse is the plain acknowledgement (RapidResponse.Response).
type EmptyResponse struct{}

func (EmptyResponse) isResponse() {}

// ConsensusResponse acknowledges a consensus-phase message.
type ConsensusResponse struct{}

func (ConsensusResponse) isResponse() {}

// ProbeStatusCode mirrors failuredetector.ProbeStatus on the wire.
type ProbeStatusCode int

const (
	ProbeOK ProbeStatusCode = iota
	ProbeBootstrapping
)

// ProbeResponse answers a ProbeMessage.
type ProbeResponse struct {
	Status ProbeStatusCode
}

func (ProbeResponse) isResponse() {}

func init() {
	gob.Register(JoinMessage{})
	gob.Register(BatchedAlertMessage{})
	gob.Register(ProbeMessage{})
	gob.Register(FastRoundPhase2bMessage{})
	gob.Register(Phase1aMessage{})
	gob.Register(Phase1bMessage{})
	gob.Register(Phase2aMessage{})
	gob.Register(Phase2bMessage{})
	gob.Register(LeaveMessage{})
	gob.Register(JoinResponse{})
	gob.Register(EmptyResponse{})
	gob.Register(ConsensusResponse{})
	gob.Register(ProbeResponse{})
}
