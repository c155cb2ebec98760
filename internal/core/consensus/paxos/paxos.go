// Package paxos implements the classic-Paxos fallback round with the
// Fast Paxos coordinator-selection rule (Figure 2), used once a fast round
// fails to reach quorum (spec.md §4.G).
package paxos

import (
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/ring"
	"github.com/rapidcluster/rapid/internal/wire"
)

// Transport is the point-to-point and fan-out send surface classic Paxos
// needs: Phase1a/Phase2a/Phase2b are broadcast to the view, Phase1b replies
// are unicast back to the coordinator.
type Transport interface {
	Broadcast(req wire.Request)
	SendTo(to membership.Endpoint, req wire.Request)
}

// Decision is invoked exactly once, with the decided value.
type Decision func(value []membership.Endpoint)

// FastRank is the rank reserved for the fast round (spec.md §4.G); classic
// rounds begin at round 2.
var FastRank = wire.Rank{Round: 1, NodeIndex: 1}

// NodeIndex derives a node's ranking tiebreaker, ringHash(self, seed=0).
func NodeIndex(self membership.Endpoint) uint64 {
	return ring.Hash(self.HostBytes(), self.Port, 0)
}

// Paxos runs one configuration change's classic round. It is owned
// exclusively by the state machine that created it; not safe for
// concurrent use.
type Paxos struct {
	n               int
	configurationID uint64
	self            membership.Endpoint
	nodeIndex       uint64
	transport       Transport
	onDecision      Decision
	decided         bool

	rnd, vrnd, crnd wire.Rank
	vval, cval      []membership.Endpoint

	phase1b      map[membership.Endpoint]wire.Phase1bMessage
	phase1bOrder []membership.Endpoint

	phase2bSenders map[wire.Rank]map[membership.Endpoint]struct{}
}

// New creates a Paxos instance for one configuration change.
func New(n int, configurationID uint64, self membership.Endpoint, transport Transport, onDecision Decision) *Paxos {
	return &Paxos{
		n:               n,
		configurationID: configurationID,
		self:            self,
		nodeIndex:       NodeIndex(self),
		transport:       transport,
		onDecision:      onDecision,
		phase1b:         make(map[membership.Endpoint]wire.Phase1bMessage),
		phase2bSenders:  make(map[wire.Rank]map[membership.Endpoint]struct{}),
	}
}

// RegisterFastRoundVote records the fast round's self-vote as if it had
// been cast at FastRank, so a subsequent classic round sees it as the
// node's existing vote.
func (p *Paxos) RegisterFastRoundVote(proposal []membership.Endpoint) {
	p.rnd = FastRank
	p.vrnd = FastRank
	p.vval = proposal
}

// StartPhase1a begins (or re-begins, at a higher round) the coordinator
// role for this node.
func (p *Paxos) StartPhase1a(round int64) {
	if round <= p.crnd.Round {
		return
	}
	p.crnd = wire.Rank{Round: round, NodeIndex: p.nodeIndex}
	p.cval = nil
	p.phase1b = make(map[membership.Endpoint]wire.Phase1bMessage)
	p.phase1bOrder = nil
	p.transport.Broadcast(wire.Phase1aMessage{Sender: p.self, ConfigurationID: p.configurationID, Rank: p.crnd})
}

// HandlePhase1a is the acceptor side of phase 1.
func (p *Paxos) HandlePhase1a(msg wire.Phase1aMessage) {
	if msg.ConfigurationID != p.configurationID {
		return
	}
	if !p.rnd.Less(msg.Rank) {
		return
	}
	p.rnd = msg.Rank
	p.transport.SendTo(msg.Sender, wire.Phase1bMessage{
		Sender:          p.self,
		ConfigurationID: p.configurationID,
		Rnd:             p.rnd,
		Vrnd:            p.vrnd,
		Vval:            p.vval,
	})
}

// HandlePhase1b is the coordinator side of phase 1.
func (p *Paxos) HandlePhase1b(msg wire.Phase1bMessage) {
	if !msg.Rnd.Equal(p.crnd) {
		return
	}
	if _, seen := p.phase1b[msg.Sender]; !seen {
		p.phase1bOrder = append(p.phase1bOrder, msg.Sender)
	}
	p.phase1b[msg.Sender] = msg

	if len(p.cval) > 0 {
		return
	}
	if len(p.phase1b) <= p.n/2 {
		return
	}
	chosen := p.selectProposalUsingCoordinatorRule()
	if len(chosen) == 0 {
		return
	}
	p.cval = chosen
	p.transport.Broadcast(wire.Phase2aMessage{
		Sender:          p.self,
		ConfigurationID: p.configurationID,
		Rnd:             p.crnd,
		Vval:            p.cval,
	})
}

// selectProposalUsingCoordinatorRule implements Fast Paxos Figure 2: let k
// be the highest vrnd among collected Phase1b messages, V the set of
// distinct non-empty vvals voted at k. A unique value is chosen outright; a
// tied value is chosen if it exceeds a quarter of the membership; otherwise
// fall back to the first non-empty vval seen, or none.
func (p *Paxos) selectProposalUsingCoordinatorRule() []membership.Endpoint {
	var maxVrnd wire.Rank
	found := false
	for _, sender := range p.phase1bOrder {
		m := p.phase1b[sender]
		if len(m.Vval) == 0 {
			continue
		}
		if !found || maxVrnd.Less(m.Vrnd) {
			maxVrnd = m.Vrnd
			found = true
		}
	}
	if !found {
		return nil
	}

	counts := make(map[string]int)
	values := make(map[string][]membership.Endpoint)
	var order []string
	for _, sender := range p.phase1bOrder {
		m := p.phase1b[sender]
		if len(m.Vval) == 0 || !m.Vrnd.Equal(maxVrnd) {
			continue
		}
		key := proposalKey(m.Vval)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
		values[key] = m.Vval
	}

	if len(counts) == 1 {
		return values[order[0]]
	}
	if len(counts) > 1 {
		threshold := p.n / 4
		for _, key := range order {
			if counts[key] > threshold {
				return values[key]
			}
		}
	}

	if len(order) > 0 {
		return values[order[0]]
	}
	return nil
}

// HandlePhase2a is the acceptor side of phase 2.
func (p *Paxos) HandlePhase2a(msg wire.Phase2aMessage) {
	if msg.ConfigurationID != p.configurationID {
		return
	}
	if p.rnd.Less(msg.Rnd) || p.rnd.Equal(msg.Rnd) {
		if p.vrnd.Equal(msg.Rnd) {
			return
		}
		p.rnd = msg.Rnd
		p.vrnd = msg.Rnd
		p.vval = msg.Vval
		p.transport.Broadcast(wire.Phase2bMessage{
			Sender:          p.self,
			ConfigurationID: p.configurationID,
			Rnd:             msg.Rnd,
			Vval:            msg.Vval,
		})
	}
}

// HandlePhase2b learns from acceptor votes; any node, not just the
// coordinator, may detect the decision this way.
func (p *Paxos) HandlePhase2b(msg wire.Phase2bMessage) {
	if msg.ConfigurationID != p.configurationID || p.decided {
		return
	}
	senders, ok := p.phase2bSenders[msg.Rnd]
	if !ok {
		senders = make(map[membership.Endpoint]struct{})
		p.phase2bSenders[msg.Rnd] = senders
	}
	senders[msg.Sender] = struct{}{}
	if len(senders) > p.n/2 {
		p.decided = true
		p.onDecision(msg.Vval)
	}
}

func proposalKey(p []membership.Endpoint) string {
	out := make([]byte, 0, len(p)*8)
	for _, e := range p {
		out = append(out, e.String()...)
		out = append(out, '|')
	}
	return string(out)
}
