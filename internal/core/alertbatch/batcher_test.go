package alertbatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []wire.BatchedAlertMessage
}

func (r *recordingBroadcaster) Broadcast(req wire.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req.(wire.BatchedAlertMessage))
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingBroadcaster) last() wire.BatchedAlertMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func alert(dst string) wire.AlertMessage {
	return wire.AlertMessage{EdgeDst: membership.Endpoint{Hostname: dst, Port: 1}, EdgeStatus: membership.EdgeStatusDown}
}

func TestBatcherCoalescesBurstIntoOneBroadcast(t *testing.T) {
	rb := &recordingBroadcaster{}
	self := membership.Endpoint{Hostname: "self", Port: 0}
	b := New(self, 20*time.Millisecond, rb)
	b.Start()
	defer b.Stop()

	b.SetConfigurationID(7)
	b.Enqueue(alert("a"))
	b.Enqueue(alert("b"))
	b.Enqueue(alert("c"))

	require.Eventually(t, func() bool { return rb.count() == 1 }, time.Second, 5*time.Millisecond)
	batch := rb.last()
	assert.Len(t, batch.Alerts, 3)
	assert.Equal(t, uint64(7), batch.ConfigurationID)
	assert.Equal(t, self, batch.Sender)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rb.count(), "no further broadcast once queue is empty")
}

func TestBatcherFlushesSeparateWindowsIndependently(t *testing.T) {
	rb := &recordingBroadcaster{}
	self := membership.Endpoint{Hostname: "self", Port: 0}
	b := New(self, 15*time.Millisecond, rb)
	b.Start()
	defer b.Stop()

	b.Enqueue(alert("a"))
	require.Eventually(t, func() bool { return rb.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rb.last().Alerts, 1)

	b.Enqueue(alert("b"))
	require.Eventually(t, func() bool { return rb.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rb.last().Alerts, 1)
}

func TestStopIsSynchronous(t *testing.T) {
	rb := &recordingBroadcaster{}
	self := membership.Endpoint{Hostname: "self", Port: 0}
	b := New(self, 10*time.Millisecond, rb)
	b.Start()
	b.Enqueue(alert("a"))
	b.Stop()

	before := rb.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, rb.count())
}
