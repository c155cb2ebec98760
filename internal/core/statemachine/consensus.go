package statemachine

import (
	"fmt"
	"sort"

	"github.com/rapidcluster/rapid/internal/core/consensus/fastpaxos"
	"github.com/rapidcluster/rapid/internal/core/consensus/paxos"
	"github.com/rapidcluster/rapid/internal/core/cutdetector"
	"github.com/rapidcluster/rapid/internal/core/failuredetector"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/core/ring"
	"github.com/rapidcluster/rapid/internal/wire"
)

// beginViewChange moves Active -> ViewChanging for proposal: it sorts the
// proposal by ringHash(seed=0) (spec.md §4.J), fires ViewChangeProposal,
// spins up a fresh FastPaxos/Paxos pair for this configuration, casts the
// coordinator's own fast vote, and replays any consensus message postponed
// while still Active before any newly arriving one (spec.md §5 ordering).
func (a *Actor) beginViewChange(proposal []membership.Endpoint) {
	if a.state != StateActive {
		return
	}
	a.state = StateViewChanging

	sorted := append([]membership.Endpoint(nil), proposal...)
	sort.Slice(sorted, func(i, j int) bool {
		return ring.Hash(sorted[i].HostBytes(), sorted[i].Port, 0) < ring.Hash(sorted[j].HostBytes(), sorted[j].Port, 0)
	})
	a.fireEvent(ViewChangeProposal{Endpoints: sorted})

	n := a.view.Size()
	cfgID := a.view.CurrentConfiguration().ConfigurationID
	a.classicPaxos = paxos.New(n, cfgID, a.self, a.transport, a.onConsensusDecision)
	a.fastPaxos = fastpaxos.New(n, cfgID, a.self, a.cfg.PaxosBaseFallback, a.rng, a.transport, a.classicPaxos, newMailboxScheduler(a.mailbox, &a.closed), a.onConsensusDecision)
	a.fastPaxos.OnFallback(func() {
		a.fireEvent(ViewChangeOneStepFailed{Proposal: sorted})
	})
	a.fastPaxos.Propose(sorted)

	postponed := a.postponedConsensus
	a.postponedConsensus = nil
	for _, req := range postponed {
		a.routeConsensus(req)
	}
}

// handleConsensusMessage postpones a consensus message arriving before any
// round has been started (Initial or Active) and routes it live once a round
// exists (ViewChanging). Postponed messages are replayed by the next
// beginViewChange. Messages arriving in Leaving/Left never get here: dispatch
// answers them with an EmptyResponse first.
func (a *Actor) handleConsensusMessage(req wire.Request) {
	if a.fastPaxos == nil || a.classicPaxos == nil {
		a.postponedConsensus = append(a.postponedConsensus, req)
		return
	}
	a.routeConsensus(req)
}

func (a *Actor) routeConsensus(req wire.Request) {
	switch m := req.(type) {
	case wire.FastRoundPhase2bMessage:
		a.fastPaxos.HandleFastRoundProposal(m)
	case wire.Phase1aMessage:
		a.classicPaxos.HandlePhase1a(m)
	case wire.Phase1bMessage:
		a.classicPaxos.HandlePhase1b(m)
	case wire.Phase2aMessage:
		a.classicPaxos.HandlePhase2a(m)
	case wire.Phase2bMessage:
		a.classicPaxos.HandlePhase2b(m)
	}
}

// onConsensusDecision is FastPaxos/Paxos's Decision callback. It always
// runs synchronously within the mailbox goroutine's own call stack (it is
// invoked from the consensus handlers reached through routeConsensus, or from
// FastPaxos.Propose inside beginViewChange when self's own vote already
// forms the quorum, and all of these run on the mailbox loop), so it may
// touch actor state directly.
func (a *Actor) onConsensusDecision(proposal []membership.Endpoint) {
	a.applyViewChange(proposal)
}

// applyViewChange installs a decided proposal: additions join the ring
// under their recorded joiner id, removals leave it. An addition with no
// recorded joiner id, or a RingAdd/RingDelete that fails, is logged at Error
// level and that endpoint is skipped; the rest of the proposal is still
// applied and the view change is not aborted. It answers every postponed joiner, rearms
// the per-view components for the new configuration, returns to Active,
// fires ViewChange, and finally replays any Leave stashed during this cycle.
func (a *Actor) applyViewChange(proposal []membership.Endpoint) {
	var changes []NodeStatusChange
	for _, e := range proposal {
		if a.view.Contains(e) {
			if err := a.view.RingDelete(e); err != nil {
				a.log.Error("ring delete failed applying decided proposal", log.String("endpoint", e.String()), log.ErrorWithKey("cause", err))
				continue
			}
			changes = append(changes, NodeStatusChange{Endpoint: e, Status: membership.EdgeStatusDown})
			delete(a.joinerNodeIds, e)
			delete(a.joinerMetadata, e)
			delete(a.metadata, e)
			if e == a.self {
				a.fireEvent(Kicked{})
			}
			continue
		}

		id, ok := a.joinerNodeIds[e]
		if !ok {
			a.log.Error("fatal: decided proposal adds unseen joiner", log.String("endpoint", e.String()), log.ErrorWithKey("cause", fmt.Errorf("%w: %s", ErrJoinerIDNotObserved, e)))
			continue
		}
		if err := a.view.RingAdd(e, id); err != nil {
			a.log.Error("ring add failed applying decided proposal", log.String("endpoint", e.String()), log.ErrorWithKey("cause", err))
			continue
		}
		metadata := a.joinerMetadata[e]
		delete(a.joinerNodeIds, e)
		delete(a.joinerMetadata, e)
		if metadata != nil {
			a.metadata[e] = metadata
		}
		changes = append(changes, NodeStatusChange{Endpoint: e, Status: membership.EdgeStatusUp, NodeID: id, Metadata: metadata})
	}

	cfg := a.view.CurrentConfiguration()

	metadataKeys, metadataValues := a.metadataKeysAndValues()
	joiners := a.postponedJoiners
	a.postponedJoiners = nil
	for _, pj := range joiners {
		a.ack(pj.reply, wire.JoinResponse{
			Sender:          a.self,
			StatusCode:      wire.SafeToJoin,
			ConfigurationID: cfg.ConfigurationID,
			Endpoints:       cfg.Endpoints,
			Identifiers:     cfg.NodeIds,
			MetadataKeys:    metadataKeys,
			MetadataValues:  metadataValues,
		})
	}

	a.rearmForNewView()
	a.state = StateActive
	a.fireEvent(ViewChange{ConfigurationID: cfg.ConfigurationID, StatusChanges: changes})

	stashed := a.stashedLeaves
	a.stashedLeaves = nil
	for _, lv := range stashed {
		a.handleLeave(lv)
	}
}

// rearmForNewView re-establishes every per-configuration component for the
// view now current: the broadcaster's recipient list (ring[0] minus self,
// since self-addressed sends loop back through loopingTransport instead of
// the network), the batcher's stamped configuration id, one failure
// detector Runner per subject, and a fresh cut detector. The retired
// FastPaxos/Paxos pair is dropped; a new one is only created by the next
// beginViewChange.
func (a *Actor) rearmForNewView() {
	recipients := make([]membership.Endpoint, 0, a.view.Size())
	for _, e := range a.view.Endpoints() {
		if e != a.self {
			recipients = append(recipients, e)
		}
	}
	a.broadcaster.SetMembership(recipients)
	a.batcher.SetConfigurationID(a.view.CurrentConfiguration().ConfigurationID)

	for _, r := range a.fdRunners {
		r.Stop()
	}
	a.fdRunners = make(map[membership.Endpoint]*failuredetector.Runner)
	for _, subject := range a.view.SubjectsOf(a.self) {
		if _, armed := a.fdRunners[subject]; armed {
			continue
		}
		a.armRunner(subject)
	}

	d, err := cutdetector.New(a.cfg.K, a.cfg.H, a.cfg.L)
	if err != nil {
		a.log.Error("invalid cut detector parameters on rearm", log.ErrorWithKey("cause", err))
	} else {
		a.cutDet = d
	}
	a.fastPaxos = nil
	a.classicPaxos = nil
}

func (a *Actor) armRunner(subject membership.Endpoint) {
	configID := a.view.CurrentConfiguration().ConfigurationID
	r, err := failuredetector.NewRunner(subject, a.prober, func(s membership.Endpoint) {
		a.mailbox <- subjectFailedItem{subject: s, configurationID: configID}
	}, failuredetector.Config{
		Interval:                  a.cfg.FailureDetectorInterval,
		ExpectFirstHeartbeatAfter: a.cfg.ExpectFirstHeartbeatAfter,
		BootstrapLimit:            a.cfg.FDBootstrapLimit,
		Theta:                     a.cfg.FDTheta,
		NMax:                      a.cfg.FDMaxSampleSize,
		Alpha:                     a.cfg.FDAlpha,
		Clock:                     failuredetector.DefaultClock,
	}, a.log)
	if err != nil {
		a.log.Error("failed to arm failure detector runner", log.String("subject", subject.String()), log.ErrorWithKey("cause", err))
		return
	}
	a.fdRunners[subject] = r
	r.Start()
}

// metadataKeysAndValues returns the current per-endpoint metadata as two
// index-aligned slices, matching wire.JoinResponse's parallel-array shape.
func (a *Actor) metadataKeysAndValues() ([]membership.Endpoint, []membership.Metadata) {
	keys := make([]membership.Endpoint, 0, len(a.metadata))
	values := make([]membership.Metadata, 0, len(a.metadata))
	for k, v := range a.metadata {
		keys = append(keys, k)
		values = append(values, v)
	}
	return keys, values
}
