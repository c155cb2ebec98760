package statemachine

import "github.com/rapidcluster/rapid/internal/core/membership"

// ClusterEvent is the sealed union of notifications the Actor publishes to
// subscribers (supplementing spec.md's wire protocol with the local
// observability surface a real deployment needs: a caller embedding this
// module wants to know when its own view changed, not just poll it).
type ClusterEvent interface {
	isClusterEvent()
}

// ViewChangeProposal fires the moment a proposal is agreed locally as worth
// pursuing (cut detector crossed H, or the node is about to leave) and a
// consensus round starts — before the round has actually decided anything.
type ViewChangeProposal struct {
	Endpoints []membership.Endpoint
}

func (ViewChangeProposal) isClusterEvent() {}

// ViewChange fires once a new configuration has been installed.
type ViewChange struct {
	ConfigurationID uint64
	StatusChanges   []NodeStatusChange
}

func (ViewChange) isClusterEvent() {}

// ViewChangeOneStepFailed fires when the fast round misses quorum and the
// classic fallback round had to start.
type ViewChangeOneStepFailed struct {
	Proposal []membership.Endpoint
}

func (ViewChangeOneStepFailed) isClusterEvent() {}

// Kicked fires when this node discovers it was itself removed from the ring
// by a decided proposal.
type Kicked struct{}

func (Kicked) isClusterEvent() {}

func (a *Actor) fireEvent(ev ClusterEvent) {
	for _, ch := range a.subscribers {
		select {
		case ch <- ev:
		default:
			a.log.Warn("dropping cluster event, subscriber channel full")
		}
	}
}
