package failuredetector

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
)

type switchingProber struct {
	okUntil int32
	calls   int32
}

func (p *switchingProber) Probe(_ context.Context, _ membership.Endpoint) (ProbeStatus, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= atomic.LoadInt32(&p.okUntil) {
		return ProbeOK, nil
	}
	return 0, errors.New("no route to peer")
}

func (p *switchingProber) callCount() int32 { return atomic.LoadInt32(&p.calls) }

// After enough consecutive OK probes to build an interval history, the
// prober starts failing every subsequent round; the runner must eventually
// signal failure exactly once and stop probing afterward.
func TestRunnerSignalsFailureAfterSilence(t *testing.T) {
	prober := &switchingProber{okUntil: 5}
	var failedSubject membership.Endpoint
	var failCount int32

	subject := membership.Endpoint{Hostname: "peer", Port: 9}
	cfg := Config{
		Interval:                  3 * time.Millisecond,
		ExpectFirstHeartbeatAfter: 3 * time.Millisecond,
		BootstrapLimit:            30,
		Theta:                     0.5,
		NMax:                      5,
		Alpha:                     0.5,
		Clock:                     DefaultClock,
	}

	r, err := NewRunner(subject, prober, func(e membership.Endpoint) {
		atomic.AddInt32(&failCount, 1)
		failedSubject = e
	}, cfg, log.New(log.LevelSilent))
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&failCount) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, subject, failedSubject)

	callsAtSignal := prober.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, callsAtSignal, prober.callCount(), "no further probes after failure is signaled")
	assert.Equal(t, int32(1), atomic.LoadInt32(&failCount), "onFail invoked exactly once")
}

func TestRunnerStopIsSynchronous(t *testing.T) {
	prober := &switchingProber{okUntil: 1000}
	subject := membership.Endpoint{Hostname: "peer", Port: 1}
	cfg := Config{
		Interval:                  2 * time.Millisecond,
		ExpectFirstHeartbeatAfter: 2 * time.Millisecond,
		BootstrapLimit:            30,
		Theta:                     0.999,
		NMax:                      5,
		Alpha:                     1,
		Clock:                     DefaultClock,
	}
	r, err := NewRunner(subject, prober, func(membership.Endpoint) {}, cfg, log.New(log.LevelSilent))
	require.NoError(t, err)

	r.Start()
	time.Sleep(10 * time.Millisecond)
	r.Stop()

	callsAtStop := prober.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, callsAtStop, prober.callCount(), "no probes fire after Stop returns")
}
