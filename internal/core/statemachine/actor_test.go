package statemachine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/wire"
)

func ep(host string, port int32) membership.Endpoint { return membership.Endpoint{Hostname: host, Port: port} }

type fakeSender struct {
	mu    sync.Mutex
	sent  []wire.Request
	resps map[membership.Endpoint]wire.Response
}

func (f *fakeSender) SendRequest(_ context.Context, to membership.Endpoint, req wire.Request) (wire.Response, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	resp, ok := f.resps[to]
	f.mu.Unlock()
	if ok {
		return resp, nil
	}
	return wire.EmptyResponse{}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchingWindow = 10 * time.Millisecond
	cfg.FailureDetectorInterval = 20 * time.Millisecond
	cfg.ExpectFirstHeartbeatAfter = 20 * time.Millisecond
	cfg.PaxosBaseFallback = time.Minute
	return cfg
}

func newTestActor(t *testing.T, self membership.Endpoint, sender *fakeSender) *Actor {
	t.Helper()
	a := New(self, testConfig(), sender, log.New(log.LevelSilent))
	t.Cleanup(a.Shutdown)
	return a
}

func TestProbeRespondsBootstrappingBeforeStartAndOKAfter(t *testing.T) {
	a := newTestActor(t, ep("self", 1), &fakeSender{})

	resp, err := a.HandleRequest(context.Background(), wire.ProbeMessage{Sender: ep("x", 9)})
	require.NoError(t, err)
	assert.Equal(t, wire.ProbeResponse{Status: wire.ProbeBootstrapping}, resp)

	a.Bootstrap([]Member{{Endpoint: ep("self", 1), NodeID: membership.NewNodeId()}})
	a.Start()

	resp, err = a.HandleRequest(context.Background(), wire.ProbeMessage{Sender: ep("x", 9)})
	require.NoError(t, err)
	assert.Equal(t, wire.ProbeResponse{Status: wire.ProbeOK}, resp)
}

func TestJoinRejectsKnownConflicts(t *testing.T) {
	sender := &fakeSender{}
	a := newTestActor(t, ep("self", 1), sender)
	selfID := membership.NewNodeId()
	a.Bootstrap([]Member{{Endpoint: ep("self", 1), NodeID: selfID}})
	a.Start()

	resp, err := a.HandleRequest(context.Background(), wire.JoinMessage{Sender: ep("self", 1), NodeID: selfID})
	require.NoError(t, err)
	jr := resp.(wire.JoinResponse)
	assert.Equal(t, wire.SameNodeAlreadyInRing, jr.StatusCode)

	resp, err = a.HandleRequest(context.Background(), wire.JoinMessage{Sender: ep("self", 1), NodeID: membership.NewNodeId()})
	require.NoError(t, err)
	jr = resp.(wire.JoinResponse)
	assert.Equal(t, wire.HostnameAlreadyInRing, jr.StatusCode)

	resp, err = a.HandleRequest(context.Background(), wire.JoinMessage{Sender: ep("other", 2), NodeID: selfID})
	require.NoError(t, err)
	jr = resp.(wire.JoinResponse)
	assert.Equal(t, wire.UUIDAlreadyInRing, jr.StatusCode)
}

// TestSingleNodeClusterAdmitsJoinerViaSelfQuorum exercises join-to-configuration
// completeness (Property 7) in its simplest form: a lone node has fast-round
// quorum of one, so its own self-vote decides the proposal immediately and
// the postponed joiner is answered in the same view-change cycle that
// admitted it.
func TestSingleNodeClusterAdmitsJoinerViaSelfQuorum(t *testing.T) {
	sender := &fakeSender{}
	a := newTestActor(t, ep("self", 1), sender)
	a.Bootstrap([]Member{{Endpoint: ep("self", 1), NodeID: membership.NewNodeId()}})
	a.Start()

	events := a.Subscribe()

	joinerID := membership.NewNodeId()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := a.HandleRequest(ctx, wire.JoinMessage{Sender: ep("joiner", 2), NodeID: joinerID})
	require.NoError(t, err)
	jr, ok := resp.(wire.JoinResponse)
	require.True(t, ok)
	assert.Equal(t, wire.SafeToJoin, jr.StatusCode)
	assert.Contains(t, jr.Endpoints, ep("joiner", 2))
	assert.Contains(t, jr.Endpoints, ep("self", 1))

	members := a.GetMemberList()
	assert.ElementsMatch(t, []membership.Endpoint{ep("self", 1), ep("joiner", 2)}, members)

	var sawProposal, sawChange bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			switch ev.(type) {
			case ViewChangeProposal:
				sawProposal = true
			case ViewChange:
				sawChange = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for cluster events")
		}
	}
	assert.True(t, sawProposal)
	assert.True(t, sawChange)
}

func TestLeaveStopsRespondingAndBroadcastsDeparture(t *testing.T) {
	sender := &fakeSender{}
	a := newTestActor(t, ep("self", 1), sender)
	a.Bootstrap([]Member{
		{Endpoint: ep("self", 1), NodeID: membership.NewNodeId()},
		{Endpoint: ep("peer", 2), NodeID: membership.NewNodeId()},
	})
	a.Start()

	a.Leave()

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, 5*time.Millisecond)

	resp, err := a.HandleRequest(context.Background(), wire.ProbeMessage{Sender: ep("x", 9)})
	require.NoError(t, err)
	assert.Equal(t, wire.EmptyResponse{}, resp)
}

func TestAlertForAbsentSubjectFilteredOut(t *testing.T) {
	sender := &fakeSender{}
	a := newTestActor(t, ep("self", 1), sender)
	a.Bootstrap([]Member{{Endpoint: ep("self", 1), NodeID: membership.NewNodeId()}})
	a.Start()

	cfg := a.CurrentConfiguration()
	resp, err := a.HandleRequest(context.Background(), wire.BatchedAlertMessage{
		Sender:          ep("self", 1),
		ConfigurationID: cfg.ConfigurationID,
		Alerts: []wire.AlertMessage{
			{EdgeSrc: ep("self", 1), EdgeDst: ep("ghost", 3), EdgeStatus: membership.EdgeStatusDown, ConfigurationID: cfg.ConfigurationID, RingNumber: []int{0}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.EmptyResponse{}, resp)
	assert.NotContains(t, a.GetMemberList(), ep("ghost", 3))
}
