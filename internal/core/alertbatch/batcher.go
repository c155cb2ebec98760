// Package alertbatch implements component I, the alert batcher: a single
// fixed-period timer that amortizes the O(edges·K) fan-out of alerts
// arriving during a configuration change into one broadcast per window
// (spec.md §4.I).
package alertbatch

import (
	"context"
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// Broadcaster is component H's fan-out surface.
type Broadcaster interface {
	Broadcast(req wire.Request)
}

// Batcher is a single-goroutine cooperative actor: Enqueue and
// SetConfigurationID may be called from any goroutine, but the queue and
// deadline they affect are only ever touched on the batcher's own loop.
type Batcher struct {
	self        membership.Endpoint
	window      time.Duration
	broadcaster Broadcaster

	enqueueCh   chan wire.AlertMessage
	setConfigCh chan uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Batcher for self with the given batchingWindow.
func New(self membership.Endpoint, window time.Duration, broadcaster Broadcaster) *Batcher {
	return &Batcher{
		self:        self,
		window:      window,
		broadcaster: broadcaster,
		enqueueCh:   make(chan wire.AlertMessage, 256),
		setConfigCh: make(chan uint64, 1),
	}
}

// Start launches the batcher's tick loop.
func (b *Batcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (b *Batcher) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}

// Enqueue queues one alert and pushes the flush deadline batchingWindow
// out from now.
func (b *Batcher) Enqueue(alert wire.AlertMessage) {
	b.enqueueCh <- alert
}

// SetConfigurationID updates the configuration id stamped onto the next
// flushed batch.
func (b *Batcher) SetConfigurationID(id uint64) {
	select {
	case b.setConfigCh <- id:
	default:
		select {
		case <-b.setConfigCh:
		default:
		}
		b.setConfigCh <- id
	}
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.window)
	defer ticker.Stop()

	var queue []wire.AlertMessage
	var deadline time.Time
	var configurationID uint64

	for {
		select {
		case <-ctx.Done():
			return

		case id := <-b.setConfigCh:
			configurationID = id

		case a := <-b.enqueueCh:
			queue = append(queue, a)
			deadline = time.Now().Add(b.window)

		case now := <-ticker.C:
			if len(queue) == 0 || now.Before(deadline) {
				continue
			}
			batch := wire.BatchedAlertMessage{
				Sender:          b.self,
				Alerts:          queue,
				ConfigurationID: configurationID,
			}
			b.broadcaster.Broadcast(batch)
			queue = nil
		}
	}
}
