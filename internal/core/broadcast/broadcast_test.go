package broadcast

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/wire"
)

type fakeSender struct {
	calls    int32
	failFor  membership.Endpoint
	received []wire.Request
}

func (f *fakeSender) SendRequest(_ context.Context, to membership.Endpoint, req wire.Request) (wire.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if to == f.failFor {
		return nil, errors.New("unreachable")
	}
	return wire.EmptyResponse{}, nil
}

func ep(host string, port int32) membership.Endpoint { return membership.Endpoint{Hostname: host, Port: port} }

func TestBroadcastFansOutToEveryRecipientAndSettles(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, time.Second, log.New(log.LevelSilent))
	b.SetMembership([]membership.Endpoint{ep("a", 1), ep("b", 2), ep("c", 3)})

	h := b.Broadcast(wire.LeaveMessage{Sender: ep("z", 9)})
	results := h.Results()

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&sender.calls))
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestBroadcastCollectsFailuresWithoutAborting(t *testing.T) {
	sender := &fakeSender{failFor: ep("b", 2)}
	b := New(sender, time.Second, log.New(log.LevelSilent))
	b.SetMembership([]membership.Endpoint{ep("a", 1), ep("b", 2), ep("c", 3)})

	results := b.Broadcast(wire.LeaveMessage{}).Results()
	var failed, ok int
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, ok)
}

func TestSetMembershipReplacesRecipientListWholesale(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, time.Second, log.New(log.LevelSilent))
	b.SetMembership([]membership.Endpoint{ep("a", 1)})
	b.SetMembership([]membership.Endpoint{ep("b", 2), ep("c", 3)})

	results := b.Broadcast(wire.LeaveMessage{}).Results()
	assert.Len(t, results, 2)
}

func TestSendToIsFireAndForget(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, time.Second, log.New(log.LevelSilent))
	b.SendTo(ep("x", 1), wire.LeaveMessage{})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sender.calls) == 1
	}, time.Second, 5*time.Millisecond)
}
