package statemachine

import (
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// mailboxItem is the sealed set of things that can land in an Actor's
// mailbox: wire requests from peers, the internal signals that would
// otherwise need to touch actor state from a foreign goroutine, and control
// messages from the actor's own public API. Keeping every mutation behind
// this single channel is what lets the rest of the package (view,
// cutDetector, fastPaxos, ...) go without a mutex.
type mailboxItem interface {
	isMailboxItem()
}

// wireItem carries one inbound peer request and, for request/response
// message kinds, the channel its reply is delivered on.
type wireItem struct {
	req   wire.Request
	reply chan wire.Response
}

func (wireItem) isMailboxItem() {}

// subjectFailedItem is posted by a failuredetector.Runner's OnFailure
// callback, which runs on the runner's own goroutine; configurationID pins
// it to the view the runner was armed under, so a stale signal racing a
// rearm is dropped rather than acted on.
type subjectFailedItem struct {
	subject         membership.Endpoint
	configurationID uint64
}

func (subjectFailedItem) isMailboxItem() {}

// runFuncItem runs an arbitrary closure on the mailbox goroutine: used by
// mailboxScheduler for fast-round fallback timers, and by the actor's
// synchronous query helpers (GetMemberList, GetMetadata) to read state
// without a lock.
type runFuncItem struct {
	fn func()
}

func (runFuncItem) isMailboxItem() {}

// subscribeItem registers a new ClusterEvent listener.
type subscribeItem struct {
	ch chan ClusterEvent
}

func (subscribeItem) isMailboxItem() {}

// shutdownItem tears the actor down; done is closed once teardown finishes.
type shutdownItem struct {
	done chan struct{}
}

func (shutdownItem) isMailboxItem() {}
