// Package membership implements the K-ring MembershipView: the data
// structure that models observer/subject monitoring relationships between
// cluster endpoints and produces the stable configuration identifiers that
// every other component agrees on.
package membership

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
)

// Endpoint identifies one physical node's listening address. Hostname holds
// the raw host bytes (as a string, so Endpoint stays a comparable map key
// and hash subject per spec.md §3); equality is bitwise.
type Endpoint struct {
	Hostname string
	Port     int32
}

// HostBytes returns the raw host bytes backing Hostname.
func (e Endpoint) HostBytes() []byte { return []byte(e.Hostname) }

func (e Endpoint) key() string {
	return e.Hostname + "|" + strconv.Itoa(int(e.Port))
}

func (e Endpoint) String() string {
	return e.Hostname + ":" + strconv.Itoa(int(e.Port))
}

// NodeId is a 128-bit identifier unique to one physical node, derived from a
// fresh UUID at startup. It is used only to reject duplicate joiners; it
// carries no ordering meaning.
type NodeId struct {
	High int64
	Low  int64
}

// NewNodeId derives a fresh NodeId from a random UUID.
func NewNodeId() NodeId {
	id := uuid.New()
	return NodeId{
		High: int64(binary.BigEndian.Uint64(id[0:8])),
		Low:  int64(binary.BigEndian.Uint64(id[8:16])),
	}
}

func (n NodeId) String() string {
	return strconv.FormatUint(uint64(n.High), 16) + strconv.FormatUint(uint64(n.Low), 16)
}

// Metadata is an opaque, per-endpoint key/value map set at join time.
type Metadata map[string][]byte

// Clone returns a defensive copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// JoinStatus is the result of a safety check against a candidate joiner.
type JoinStatus int

const (
	SafeToJoin JoinStatus = iota
	HostnameAlreadyInRing
	UUIDAlreadyInRing
	SameNodeAlreadyInRing
)

func (s JoinStatus) String() string {
	switch s {
	case SafeToJoin:
		return "SAFE_TO_JOIN"
	case HostnameAlreadyInRing:
		return "HOSTNAME_ALREADY_IN_RING"
	case UUIDAlreadyInRing:
		return "UUID_ALREADY_IN_RING"
	case SameNodeAlreadyInRing:
		return "SAME_NODE_ALREADY_IN_RING"
	default:
		return "UNKNOWN_JOIN_STATUS"
	}
}

// Configuration is a named snapshot of the membership: the set of endpoints
// (in ring-0 order, so every node names the same configuration the same
// way) plus the node ids that produced its ConfigurationID.
type Configuration struct {
	ConfigurationID uint64
	Endpoints       []Endpoint
	NodeIds         []NodeId
}

// EdgeStatus is the direction of an alert about one edge.
type EdgeStatus int

const (
	EdgeStatusUp EdgeStatus = iota
	EdgeStatusDown
)

func (s EdgeStatus) String() string {
	if s == EdgeStatusUp {
		return "UP"
	}
	return "DOWN"
}
