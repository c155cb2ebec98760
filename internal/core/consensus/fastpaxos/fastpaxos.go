// Package fastpaxos implements the single-phase Fast Paxos round used to
// decide a view-change proposal without the two-phase classic protocol,
// falling back to it when agreement doesn't arrive quickly (spec.md §4.F).
package fastpaxos

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// ClassicRound is component G, invoked to register the coordinator's own
// fast-round vote and to start the classic fallback round.
type ClassicRound interface {
	RegisterFastRoundVote(proposal []membership.Endpoint)
	StartPhase1a(round int64)
}

// Broadcaster is component H: fire-and-forget fan-out to the current view.
type Broadcaster interface {
	Broadcast(req wire.Request)
}

// Scheduler runs fn after d elapses on the caller's own serialized
// execution context (the owning state machine's mailbox), and returns a
// cancel function. Keeping the callback on that context, rather than an
// arbitrary goroutine, preserves the single-consumer invariant of spec.md §5.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// Decision is invoked exactly once, with the agreed proposal.
type Decision func(proposal []membership.Endpoint)

// FastPaxos runs one configuration change's fast round. It is owned
// exclusively by the state machine that created it; not safe for
// concurrent use.
type FastPaxos struct {
	n               int
	configurationID uint64
	self            membership.Endpoint
	baseFallback    time.Duration
	rng             *rand.Rand

	broadcaster Broadcaster
	classic     ClassicRound
	scheduler   Scheduler
	onDecision  Decision

	votesPerProposal map[string]int
	votedSenders     map[membership.Endpoint]struct{}
	decided          bool
	cancelFallback   func()

	onFallback func()
}

// OnFallback registers fn to run exactly once, synchronously on the
// scheduler's own context, the moment the fast round actually falls back to
// classic Paxos (fired before StartPhase1a(2), never if the fast round
// decides first). Optional; a nil fn (the default) is a no-op.
func (f *FastPaxos) OnFallback(fn func()) {
	f.onFallback = fn
}

// New creates a FastPaxos instance for one configuration change. rng may be
// nil, in which case a time-seeded source is used; tests should inject a
// seeded one for determinism.
func New(n int, configurationID uint64, self membership.Endpoint, baseFallback time.Duration, rng *rand.Rand, broadcaster Broadcaster, classic ClassicRound, scheduler Scheduler, onDecision Decision) *FastPaxos {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &FastPaxos{
		n:                n,
		configurationID:  configurationID,
		self:             self,
		baseFallback:     baseFallback,
		rng:              rng,
		broadcaster:      broadcaster,
		classic:          classic,
		scheduler:        scheduler,
		onDecision:       onDecision,
		votesPerProposal: make(map[string]int),
		votedSenders:     make(map[membership.Endpoint]struct{}),
	}
}

// Quorum returns N-F where F = floor((N-1)/4), the fast-round decision
// threshold (spec.md §4.F/§8 Property 4).
func (f *FastPaxos) Quorum() int {
	quorumFallout := (f.n - 1) / 4
	return f.n - quorumFallout
}

// Propose casts the coordinator's own vote, broadcasts it, and schedules
// the classic-Paxos fallback after a jittered delay.
func (f *FastPaxos) Propose(proposal []membership.Endpoint) {
	f.classic.RegisterFastRoundVote(proposal)
	f.recordVote(f.self, proposal)

	f.broadcaster.Broadcast(wire.FastRoundPhase2bMessage{
		Sender:          f.self,
		ConfigurationID: f.configurationID,
		Endpoints:       proposal,
	})

	rate := 1.0 / float64(f.n)
	u := f.rng.Float64()
	jitter := time.Duration(-1000*math.Log(1-u)/rate) * time.Millisecond
	f.cancelFallback = f.scheduler.Schedule(jitter+f.baseFallback, func() {
		if f.decided {
			return
		}
		if f.onFallback != nil {
			f.onFallback()
		}
		f.classic.StartPhase1a(2)
	})
}

// HandleFastRoundProposal processes a peer's fast-round vote.
func (f *FastPaxos) HandleFastRoundProposal(msg wire.FastRoundPhase2bMessage) {
	if msg.ConfigurationID != f.configurationID {
		return
	}
	if f.decided {
		return
	}
	if _, dup := f.votedSenders[msg.Sender]; dup {
		return
	}
	f.recordVote(msg.Sender, msg.Endpoints)
}

func (f *FastPaxos) recordVote(sender membership.Endpoint, proposal []membership.Endpoint) {
	f.votedSenders[sender] = struct{}{}
	key := proposalKey(proposal)
	f.votesPerProposal[key]++

	quorum := f.Quorum()
	if len(f.votedSenders) >= quorum && f.votesPerProposal[key] >= quorum {
		f.decided = true
		if f.cancelFallback != nil {
			f.cancelFallback()
		}
		f.onDecision(proposal)
	}
}

func proposalKey(p []membership.Endpoint) string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, "|")
}
