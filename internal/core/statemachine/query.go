package statemachine

import (
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// GetMemberList returns the current ring[0] membership in ring order.
func (a *Actor) GetMemberList() []membership.Endpoint {
	var out []membership.Endpoint
	a.query(func() { out = a.view.Endpoints() })
	return out
}

// GetMetadata returns a defensive copy of every endpoint's join-time
// metadata currently recorded.
func (a *Actor) GetMetadata() map[membership.Endpoint]membership.Metadata {
	out := make(map[membership.Endpoint]membership.Metadata)
	a.query(func() {
		for k, v := range a.metadata {
			out[k] = v.Clone()
		}
	})
	return out
}

// CurrentConfiguration returns the current Configuration snapshot.
func (a *Actor) CurrentConfiguration() membership.Configuration {
	var cfg membership.Configuration
	a.query(func() { cfg = a.view.CurrentConfiguration() })
	return cfg
}

// State returns the actor's current lifecycle stage.
func (a *Actor) State() State {
	var s State
	a.query(func() { s = a.state })
	return s
}

// Leave announces this node's voluntary departure: it broadcasts a
// LeaveMessage to the current view (each recipient that observes self on
// some ring synthesizes the DOWN alert that eventually removes self from
// its view, the same way a
// detected failure would) and stops participating locally immediately,
// matching the fire-and-forget Leave semantics recorded in DESIGN.md — the
// caller never waits for the resulting view change.
func (a *Actor) Leave() {
	a.mailbox <- runFuncItem{fn: a.handleLocalLeave}
}

func (a *Actor) handleLocalLeave() {
	if a.state == StateLeaving || a.state == StateLeft {
		return
	}
	a.broadcaster.Broadcast(wire.LeaveMessage{Sender: a.self})
	a.state = StateLeaving
	a.batcher.Stop()
	for _, r := range a.fdRunners {
		r.Stop()
	}
}

