package statemachine

import (
	"sync/atomic"
	"time"
)

// mailboxScheduler implements fastpaxos.Scheduler by posting the scheduled
// callback back onto the actor's own mailbox instead of running it on
// time.AfterFunc's own goroutine, so it still executes under the
// single-consumer invariant. It is expressed as a timer future owned by the
// actor (spec.md §9): cancellation is dropping the handle via Stop.
type mailboxScheduler struct {
	mailbox chan<- mailboxItem
	closed  *atomic.Bool
}

func newMailboxScheduler(mailbox chan<- mailboxItem, closed *atomic.Bool) *mailboxScheduler {
	return &mailboxScheduler{mailbox: mailbox, closed: closed}
}

// Schedule runs fn on the actor's mailbox goroutine after d elapses.
func (s *mailboxScheduler) Schedule(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, func() {
		if s.closed.Load() {
			return
		}
		select {
		case s.mailbox <- runFuncItem{fn: fn}:
		default:
		}
	})
	return func() { timer.Stop() }
}
