package statemachine

import (
	"github.com/rapidcluster/rapid/internal/core/cutdetector"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// handleBatchedAlert runs the alert-filtering pipeline over every alert in
// the batch, then feeds the survivors to the cut detector only while Active
// (spec.md §4.C/§4.J): in ViewChanging, filtering still runs for its
// joiner-id/metadata side effects but the cut detector is disarmed.
func (a *Actor) handleBatchedAlert(msg wire.BatchedAlertMessage) {
	for _, alert := range msg.Alerts {
		if !a.filterAlert(alert) {
			continue
		}
		if a.state != StateActive {
			continue
		}
		if proposal := a.cutDet.Aggregate(toDetectorAlert(alert)); len(proposal) > 0 {
			a.beginViewChange(proposal)
		}
	}
	if a.state == StateActive {
		if proposal := a.cutDet.InvalidateFailingEdges(a.view); len(proposal) > 0 {
			a.beginViewChange(proposal)
		}
	}
}

// filterAlert applies spec.md §4.J's alert-admission rules: reject alerts
// stamped with a stale configuration id, reject UP alerts about endpoints
// already present and DOWN alerts about endpoints already absent, and
// record the joiner id/metadata an UP alert carries for later application.
func (a *Actor) filterAlert(alert wire.AlertMessage) bool {
	cfg := a.view.CurrentConfiguration()
	if alert.ConfigurationID != cfg.ConfigurationID {
		return false
	}
	present := a.view.Contains(alert.EdgeDst)
	switch alert.EdgeStatus {
	case membership.EdgeStatusUp:
		if present {
			return false
		}
		if alert.NodeID != nil {
			a.joinerNodeIds[alert.EdgeDst] = *alert.NodeID
			a.joinerMetadata[alert.EdgeDst] = alert.Metadata
		}
	case membership.EdgeStatusDown:
		if !present {
			return false
		}
	}
	return true
}

func toDetectorAlert(a wire.AlertMessage) cutdetector.Alert {
	return cutdetector.Alert{
		EdgeSrc:         a.EdgeSrc,
		EdgeDst:         a.EdgeDst,
		EdgeStatus:      a.EdgeStatus,
		ConfigurationID: a.ConfigurationID,
		RingNumbers:     a.RingNumber,
		NodeID:          a.NodeID,
		Metadata:        a.Metadata,
	}
}

// handleSubjectFailed translates a failure-detector signal into a DOWN
// alert, enqueued into the batcher like any peer-reported alert. A signal
// raised under a configuration this actor has already moved past is
// dropped: the Runner that raised it is being (or has been) torn down by
// rearmForNewView, but the two are not synchronized beyond the mailbox.
func (a *Actor) handleSubjectFailed(item subjectFailedItem) {
	cfg := a.view.CurrentConfiguration()
	if item.configurationID != cfg.ConfigurationID {
		return
	}
	ringNums := a.view.RingNumbers(a.self, item.subject)
	if len(ringNums) == 0 {
		return
	}
	a.batcher.Enqueue(wire.AlertMessage{
		EdgeSrc:         a.self,
		EdgeDst:         item.subject,
		EdgeStatus:      membership.EdgeStatusDown,
		ConfigurationID: cfg.ConfigurationID,
		RingNumber:      ringNums,
	})
}

// handleLeave processes a graceful departure announcement. Per DESIGN.md's
// recorded Open Question decision, the reply is fire-and-forget regardless
// of whether the DOWN alert synthesis happens now or is deferred: the
// caller never waits on it (spec.md §4.J), only Leave message itself is
// stashed while ViewChanging so it is not lost.
func (a *Actor) handleLeave(msg wire.LeaveMessage) {
	if a.state == StateViewChanging {
		a.stashedLeaves = append(a.stashedLeaves, msg)
		return
	}
	a.synthesizeLeaveAlert(msg.Sender)
}

func (a *Actor) synthesizeLeaveAlert(sender membership.Endpoint) {
	cfg := a.view.CurrentConfiguration()
	ringNums := a.view.RingNumbers(a.self, sender)
	if len(ringNums) == 0 {
		return
	}
	a.batcher.Enqueue(wire.AlertMessage{
		EdgeSrc:         a.self,
		EdgeDst:         sender,
		EdgeStatus:      membership.EdgeStatusDown,
		ConfigurationID: cfg.ConfigurationID,
		RingNumber:      ringNums,
	})
}
