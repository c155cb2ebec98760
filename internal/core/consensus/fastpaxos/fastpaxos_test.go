package fastpaxos

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

type noopClassicRound struct {
	registered [][]membership.Endpoint
	started    []int64
}

func (c *noopClassicRound) RegisterFastRoundVote(p []membership.Endpoint) {
	c.registered = append(c.registered, p)
}
func (c *noopClassicRound) StartPhase1a(round int64) { c.started = append(c.started, round) }

type recordingBroadcaster struct {
	sent []wire.Request
}

func (b *recordingBroadcaster) Broadcast(req wire.Request) { b.sent = append(b.sent, req) }

type manualScheduler struct {
	fn       func()
	canceled bool
}

func (s *manualScheduler) Schedule(_ time.Duration, fn func()) func() {
	s.fn = fn
	return func() { s.canceled = true }
}

func voter(i int) membership.Endpoint   { return membership.Endpoint{Hostname: "voter", Port: int32(i)} }
func endpoint(i int) membership.Endpoint { return membership.Endpoint{Hostname: "member", Port: int32(i)} }

// Property 4 / S6: with N=48 (quorum=37), 37 unconflicted votes plus 11
// distinct conflicting single-vote proposals still decide the unconflicted
// value; with only 34 unconflicted votes (14 conflicts) no decision fires.
func TestFastPaxosSafetyQuorumDecides(t *testing.T) {
	classic := &noopClassicRound{}
	bcast := &recordingBroadcaster{}
	sched := &manualScheduler{}
	var decision []membership.Endpoint
	fp := New(48, 1, voter(0), 10*time.Second, rand.New(rand.NewSource(1)), bcast, classic, sched, func(p []membership.Endpoint) {
		decision = p
	})

	agreed := []membership.Endpoint{endpoint(1)}
	for i := 0; i < 37; i++ {
		fp.HandleFastRoundProposal(wire.FastRoundPhase2bMessage{Sender: voter(100 + i), ConfigurationID: 1, Endpoints: agreed})
	}
	for i := 0; i < 11; i++ {
		conflicting := []membership.Endpoint{endpoint(200 + i)}
		fp.HandleFastRoundProposal(wire.FastRoundPhase2bMessage{Sender: voter(300 + i), ConfigurationID: 1, Endpoints: conflicting})
	}

	require.NotNil(t, decision)
	assert.Equal(t, agreed, decision)
}

func TestFastPaxosSafetyBelowQuorumNoDecision(t *testing.T) {
	classic := &noopClassicRound{}
	bcast := &recordingBroadcaster{}
	sched := &manualScheduler{}
	var decision []membership.Endpoint
	fp := New(48, 1, voter(0), 10*time.Second, rand.New(rand.NewSource(1)), bcast, classic, sched, func(p []membership.Endpoint) {
		decision = p
	})

	agreed := []membership.Endpoint{endpoint(1)}
	for i := 0; i < 34; i++ {
		fp.HandleFastRoundProposal(wire.FastRoundPhase2bMessage{Sender: voter(100 + i), ConfigurationID: 1, Endpoints: agreed})
	}
	for i := 0; i < 14; i++ {
		conflicting := []membership.Endpoint{endpoint(200 + i)}
		fp.HandleFastRoundProposal(wire.FastRoundPhase2bMessage{Sender: voter(300 + i), ConfigurationID: 1, Endpoints: conflicting})
	}

	assert.Nil(t, decision)
}

func TestFastPaxosIgnoresStaleConfigurationAndDuplicateSenders(t *testing.T) {
	classic := &noopClassicRound{}
	bcast := &recordingBroadcaster{}
	sched := &manualScheduler{}
	var decisions int
	fp := New(4, 7, voter(0), time.Second, rand.New(rand.NewSource(2)), bcast, classic, sched, func([]membership.Endpoint) {
		decisions++
	})

	stale := wire.FastRoundPhase2bMessage{Sender: voter(1), ConfigurationID: 6, Endpoints: []membership.Endpoint{endpoint(1)}}
	fp.HandleFastRoundProposal(stale)
	assert.Empty(t, fp.votedSenders)

	vote := wire.FastRoundPhase2bMessage{Sender: voter(1), ConfigurationID: 7, Endpoints: []membership.Endpoint{endpoint(1)}}
	fp.HandleFastRoundProposal(vote)
	fp.HandleFastRoundProposal(vote) // duplicate sender: ignored
	assert.Equal(t, 1, fp.votesPerProposal[proposalKey(vote.Endpoints)])
}

// Propose registers a self-vote with the classic round, broadcasts it, and
// schedules a fallback; a decision before the fallback fires cancels it.
func TestProposeSchedulesFallbackAndCancelsOnDecision(t *testing.T) {
	classic := &noopClassicRound{}
	bcast := &recordingBroadcaster{}
	sched := &manualScheduler{}
	var decided bool
	fp := New(4, 1, voter(0), time.Second, rand.New(rand.NewSource(3)), bcast, classic, sched, func([]membership.Endpoint) {
		decided = true
	})

	proposal := []membership.Endpoint{endpoint(1)}
	fp.Propose(proposal)

	require.Len(t, classic.registered, 1)
	assert.Equal(t, proposal, classic.registered[0])
	require.Len(t, bcast.sent, 1)
	require.NotNil(t, sched.fn)

	// quorum for N=4 is 4-0=4; three more votes complete it and should
	// cancel the scheduled fallback.
	for i := 0; i < 3; i++ {
		fp.HandleFastRoundProposal(wire.FastRoundPhase2bMessage{Sender: voter(10 + i), ConfigurationID: 1, Endpoints: proposal})
	}
	assert.True(t, decided)
	assert.True(t, sched.canceled)
}
