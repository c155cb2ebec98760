package statemachine

import (
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// handleJoin admits or rejects a joiner per spec.md §4.J. While
// ViewChanging every Join is rejected with VIEW_CHANGE_IN_PROGRESS so the
// joiner's client-side retry policy (internal/service) can back off and
// retry against the current configuration once it settles.
func (a *Actor) handleJoin(msg wire.JoinMessage, reply chan wire.Response) {
	cfg := a.view.CurrentConfiguration()

	if a.state == StateViewChanging {
		a.ack(reply, wire.JoinResponse{
			Sender:          a.self,
			StatusCode:      wire.ViewChangeInProgress,
			ConfigurationID: cfg.ConfigurationID,
		})
		return
	}

	switch a.view.IsSafeToJoin(msg.Sender, msg.NodeID) {
	case membership.SafeToJoin:
		a.postponedJoiners = append(a.postponedJoiners, postponedJoiner{req: msg, reply: reply})
		observers := a.view.ExpectedObserversOf(msg.Sender)
		nodeID := msg.NodeID
		for k, observer := range observers {
			a.batcher.Enqueue(wire.AlertMessage{
				EdgeSrc:         observer,
				EdgeDst:         msg.Sender,
				EdgeStatus:      membership.EdgeStatusUp,
				ConfigurationID: cfg.ConfigurationID,
				RingNumber:      []int{k},
				NodeID:          &nodeID,
				Metadata:        msg.Metadata,
			})
		}

	case membership.SameNodeAlreadyInRing:
		a.ack(reply, wire.JoinResponse{
			Sender:          a.self,
			StatusCode:      wire.SameNodeAlreadyInRing,
			ConfigurationID: cfg.ConfigurationID,
			Endpoints:       cfg.Endpoints,
			Identifiers:     cfg.NodeIds,
		})

	case membership.HostnameAlreadyInRing:
		a.ack(reply, wire.JoinResponse{
			Sender:          a.self,
			StatusCode:      wire.HostnameAlreadyInRing,
			ConfigurationID: cfg.ConfigurationID,
		})

	case membership.UUIDAlreadyInRing:
		a.ack(reply, wire.JoinResponse{
			Sender:          a.self,
			StatusCode:      wire.UUIDAlreadyInRing,
			ConfigurationID: cfg.ConfigurationID,
		})
	}
}
