package statemachine

import (
	"github.com/rapidcluster/rapid/internal/core/broadcast"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// loopingTransport adapts broadcast.Broadcaster's async, Handle-returning
// Broadcast to the no-return Broadcast/SendTo signature fastpaxos.Broadcaster
// and paxos.Transport expect. Self is never placed in the Broadcaster's own
// recipient list (see Actor.rearmForNewView) so a broadcast or unicast
// addressed to self is instead delivered straight back onto the owning
// actor's mailbox rather than round-tripping over the network.
type loopingTransport struct {
	self        membership.Endpoint
	broadcaster *broadcast.Broadcaster
	mailbox     chan<- mailboxItem
}

func newLoopingTransport(self membership.Endpoint, broadcaster *broadcast.Broadcaster, mailbox chan<- mailboxItem) *loopingTransport {
	return &loopingTransport{self: self, broadcaster: broadcaster, mailbox: mailbox}
}

// Broadcast satisfies fastpaxos.Broadcaster and half of paxos.Transport.
func (t *loopingTransport) Broadcast(req wire.Request) {
	t.broadcaster.Broadcast(req)
	t.deliverLocal(req)
}

// SendTo satisfies the other half of paxos.Transport.
func (t *loopingTransport) SendTo(to membership.Endpoint, req wire.Request) {
	if to == t.self {
		t.deliverLocal(req)
		return
	}
	t.broadcaster.SendTo(to, req)
}

func (t *loopingTransport) deliverLocal(req wire.Request) {
	select {
	case t.mailbox <- wireItem{req: req, reply: nil}:
	default:
	}
}
