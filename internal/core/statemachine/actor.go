package statemachine

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rapidcluster/rapid/internal/core/alertbatch"
	"github.com/rapidcluster/rapid/internal/core/broadcast"
	"github.com/rapidcluster/rapid/internal/core/consensus/fastpaxos"
	"github.com/rapidcluster/rapid/internal/core/consensus/paxos"
	"github.com/rapidcluster/rapid/internal/core/cutdetector"
	"github.com/rapidcluster/rapid/internal/core/failuredetector"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/wire"
)

// Member is one ring entry used to seed an Actor's view before it starts
// (spec.md §4.J's implicit bootstrap step: the very first node in a cluster
// has no one to Join, and every later node installs the JoinResponse's
// Endpoints/Identifiers/Metadata this same way once admitted).
type Member struct {
	Endpoint membership.Endpoint
	NodeID   membership.NodeId
	Metadata membership.Metadata
}

// postponedJoiner is a SAFE_TO_JOIN joiner whose JoinResponse is deferred
// until the view change admitting it actually decides (spec.md §4.J).
type postponedJoiner struct {
	req   wire.JoinMessage
	reply chan wire.Response
}

// Actor is the RapidStateMachine (spec.md §4.J). Construct with New, seed
// the initial view with Bootstrap, then call Start; HandleRequest, Leave,
// Subscribe, GetMemberList, GetMetadata and Shutdown are all safe to call
// from any goroutine once constructed.
type Actor struct {
	cfg  Config
	self membership.Endpoint
	log  log.Log
	rng  *rand.Rand

	mailbox chan mailboxItem
	closed  atomic.Bool
	done    chan struct{}

	state State
	view  *membership.View

	cutDet      *cutdetector.Detector
	broadcaster *broadcast.Broadcaster
	transport   *loopingTransport
	batcher     *alertbatch.Batcher
	prober      failuredetector.Prober
	fdRunners   map[membership.Endpoint]*failuredetector.Runner

	fastPaxos          *fastpaxos.FastPaxos
	classicPaxos       *paxos.Paxos
	postponedConsensus []wire.Request

	joinerNodeIds  map[membership.Endpoint]membership.NodeId
	joinerMetadata map[membership.Endpoint]membership.Metadata
	metadata       map[membership.Endpoint]membership.Metadata

	postponedJoiners []postponedJoiner
	stashedLeaves    []wire.LeaveMessage

	subscribers []chan ClusterEvent
}

// New constructs an Actor and immediately launches its mailbox loop; the
// actor stays in StateInitial until Start is called. In StateInitial peer
// requests are still dispatched: probes are answered BOOTSTRAPPING,
// consensus messages are postponed, and alerts are filtered but not fed to a
// cut detector.
func New(self membership.Endpoint, cfg Config, sender broadcast.Sender, logger log.Log) *Actor {
	a := &Actor{
		cfg:            cfg,
		self:           self,
		log:            logger,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		mailbox:        make(chan mailboxItem, 4096),
		done:           make(chan struct{}),
		state:          StateInitial,
		view:           membership.NewView(cfg.K),
		fdRunners:      make(map[membership.Endpoint]*failuredetector.Runner),
		joinerNodeIds:  make(map[membership.Endpoint]membership.NodeId),
		joinerMetadata: make(map[membership.Endpoint]membership.Metadata),
		metadata:       make(map[membership.Endpoint]membership.Metadata),
	}
	a.broadcaster = broadcast.New(sender, cfg.BroadcastTimeout, logger)
	a.transport = newLoopingTransport(self, a.broadcaster, a.mailbox)
	a.batcher = alertbatch.New(self, cfg.BatchingWindow, a.transport)
	a.prober = newWireProber(self, sender)

	go a.run()
	return a
}

// Bootstrap seeds the initial view before Start. It is intended for one-time
// setup: the first node in a cluster seeds itself, and any later joiner
// seeds itself with the JoinResponse's membership once admitted.
func (a *Actor) Bootstrap(members []Member) {
	done := make(chan struct{})
	a.mailbox <- runFuncItem{fn: func() {
		for _, m := range members {
			_ = a.view.RingAdd(m.Endpoint, m.NodeID)
			if m.Metadata != nil {
				a.metadata[m.Endpoint] = m.Metadata
			}
		}
		close(done)
	}}
	<-done
}

// Start transitions Initial -> Active: it arms the cut detector, the
// broadcaster's recipient list, the alert batcher and one failure-detector
// Runner per subject.
func (a *Actor) Start() {
	a.mailbox <- runFuncItem{fn: a.handleStart}
}

func (a *Actor) handleStart() {
	if a.state != StateInitial {
		return
	}
	a.state = StateActive
	d, err := cutdetector.New(a.cfg.K, a.cfg.H, a.cfg.L)
	if err != nil {
		a.log.Error("invalid cut detector parameters", log.ErrorWithKey("cause", err))
		return
	}
	a.cutDet = d
	a.batcher.Start()
	a.rearmForNewView()
}

// Subscribe registers a new ClusterEvent listener. The returned channel is
// closed when Shutdown completes.
func (a *Actor) Subscribe() <-chan ClusterEvent {
	ch := make(chan ClusterEvent, 32)
	a.mailbox <- subscribeItem{ch: ch}
	return ch
}

// HandleRequest delivers one inbound peer request to the actor and blocks
// for its response or ctx's cancellation, whichever comes first.
func (a *Actor) HandleRequest(ctx context.Context, req wire.Request) (wire.Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	reply := make(chan wire.Response, 1)
	select {
	case a.mailbox <- wireItem{req: req, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the batcher, every failure-detector runner and the mailbox
// loop, synchronously.
func (a *Actor) Shutdown() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	done := make(chan struct{})
	a.mailbox <- shutdownItem{done: done}
	<-done
}

func (a *Actor) handleShutdown() {
	a.state = StateLeft
	a.batcher.Stop()
	for _, r := range a.fdRunners {
		r.Stop()
	}
	for _, ch := range a.subscribers {
		close(ch)
	}
}

// query runs fn synchronously on the mailbox goroutine and blocks the
// caller until it completes, giving read-only accessors like GetMemberList
// lock-free access to actor state.
func (a *Actor) query(fn func()) {
	done := make(chan struct{})
	a.mailbox <- runFuncItem{fn: func() { fn(); close(done) }}
	<-done
}

func (a *Actor) run() {
	defer close(a.done)
	for item := range a.mailbox {
		switch m := item.(type) {
		case wireItem:
			a.dispatch(m)
		case subjectFailedItem:
			a.handleSubjectFailed(m)
		case runFuncItem:
			m.fn()
		case subscribeItem:
			a.subscribers = append(a.subscribers, m.ch)
		case shutdownItem:
			a.handleShutdown()
			close(m.done)
			return
		}
	}
}

func (a *Actor) dispatch(m wireItem) {
	if a.state == StateLeaving || a.state == StateLeft {
		a.ack(m.reply, wire.EmptyResponse{})
		return
	}

	switch req := m.req.(type) {
	case wire.JoinMessage:
		a.handleJoin(req, m.reply)
	case wire.BatchedAlertMessage:
		a.handleBatchedAlert(req)
		a.ack(m.reply, wire.EmptyResponse{})
	case wire.LeaveMessage:
		a.handleLeave(req)
		a.ack(m.reply, wire.EmptyResponse{})
	case wire.ProbeMessage:
		a.handleProbe(req, m.reply)
	case wire.FastRoundPhase2bMessage, wire.Phase1aMessage, wire.Phase1bMessage, wire.Phase2aMessage, wire.Phase2bMessage:
		a.handleConsensusMessage(req)
		a.ack(m.reply, wire.ConsensusResponse{})
	default:
		a.ack(m.reply, wire.EmptyResponse{})
	}
}

func (a *Actor) ack(reply chan wire.Response, resp wire.Response) {
	if reply == nil {
		return
	}
	select {
	case reply <- resp:
	default:
	}
}

func (a *Actor) handleProbe(_ wire.ProbeMessage, reply chan wire.Response) {
	status := wire.ProbeOK
	if a.state == StateInitial {
		status = wire.ProbeBootstrapping
	}
	a.ack(reply, wire.ProbeResponse{Status: status})
}
