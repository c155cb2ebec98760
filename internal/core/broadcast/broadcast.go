// Package broadcast implements component H, the Broadcaster: fan-out of
// one request to the current view's recipients, best-effort, settling
// asynchronously (spec.md §4.H, §5).
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/wire"
	"github.com/rapidcluster/rapid/pkg/concurrent"
	"github.com/rapidcluster/rapid/pkg/sequence"
)

// Sender is the outbound RPC surface the Broadcaster fans out over. It is
// shared and thread-safe (spec.md §5); internal/transport provides the
// implementations (the in-memory Registry, and wsrpc.Client, which dials a
// fresh connection per call and keeps no connection pool).
type Sender interface {
	SendRequest(ctx context.Context, to membership.Endpoint, req wire.Request) (wire.Response, error)
}

// Result is one recipient's settled outcome.
type Result struct {
	Recipient membership.Endpoint
	Err       error
}

// Handle is the asynchronous completion token for one Broadcast call: the
// state machine never blocks on it (spec.md §5 suspension points), but may
// inspect it once Done is closed.
type Handle struct {
	done    chan struct{}
	results []Result
}

// Done closes once every recipient of this broadcast has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Results returns the per-recipient outcomes. It blocks until Done closes.
func (h *Handle) Results() []Result {
	<-h.done
	return h.results
}

// Broadcaster fans requests out to the current configuration's recipient
// list. Its recipient list is mutated only from within the owning state
// machine's mailbox (spec.md §5); sends themselves run on their own
// goroutines and are safe to issue concurrently with a SetMembership call.
type Broadcaster struct {
	mu         sync.RWMutex
	recipients []membership.Endpoint

	sender  Sender
	timeout time.Duration
	log     log.Log
}

// New creates a Broadcaster with an empty recipient list.
func New(sender Sender, timeout time.Duration, logger log.Log) *Broadcaster {
	return &Broadcaster{sender: sender, timeout: timeout, log: logger}
}

// SetMembership replaces the recipient list wholesale.
func (b *Broadcaster) SetMembership(endpoints []membership.Endpoint) {
	recipients := make([]membership.Endpoint, len(endpoints))
	copy(recipients, endpoints)
	b.mu.Lock()
	b.recipients = recipients
	b.mu.Unlock()
}

// Broadcast unicasts req to every current recipient, best-effort, and
// returns a Handle that completes once all sends have settled. Every send
// runs on its own goroutine, so ordering is not guaranteed across peers, nor
// between two Broadcast calls to the same peer.
func (b *Broadcaster) Broadcast(req wire.Request) *Handle {
	b.mu.RLock()
	recipients := make([]membership.Endpoint, len(b.recipients))
	copy(recipients, b.recipients)
	b.mu.RUnlock()

	h := &Handle{done: make(chan struct{})}
	go func() {
		workers := len(recipients)
		if workers == 0 {
			workers = 1
		}
		h.results = concurrent.ParallelMap(sequence.From(recipients), workers, func(to membership.Endpoint) Result {
			return Result{Recipient: to, Err: b.send(to, req)}
		})
		close(h.done)
	}()
	return h
}

// SendTo unicasts req to exactly one recipient, fire-and-forget.
func (b *Broadcaster) SendTo(to membership.Endpoint, req wire.Request) {
	go func() {
		_ = b.send(to, req)
	}()
}

func (b *Broadcaster) send(to membership.Endpoint, req wire.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	_, err := b.sender.SendRequest(ctx, to, req)
	if err != nil {
		b.log.Debug("best-effort send failed", log.String("to", to.String()), log.ErrorWithKey("cause", err))
	}
	return err
}
