// Package cutdetector implements the MultiNodeCutDetector: it aggregates
// per-edge UP/DOWN alerts into a view-change proposal once enough distinct
// observers (crossing a high watermark H) agree on enough destinations,
// giving almost-everywhere agreement across the cluster (spec.md §4.C).
package cutdetector

import (
	"errors"
	"sort"

	"github.com/rapidcluster/rapid/internal/core/membership"
)

// ErrInvalidParameters is a ValidityError (spec.md §7): K/H/L do not satisfy
// K >= KMin, H <= K, L <= H, L > 0.
var ErrInvalidParameters = errors.New("cutdetector: invalid K/H/L parameters")

// KMin is the minimum ring count the detector can reason about.
const KMin = membership.KMin

// Alert is one observer's statement about one edge (spec.md §3).
type Alert struct {
	EdgeSrc         membership.Endpoint
	EdgeDst         membership.Endpoint
	EdgeStatus      membership.EdgeStatus
	ConfigurationID uint64
	RingNumbers     []int
	NodeID          *membership.NodeId
	Metadata        membership.Metadata
}

// Detector is one configuration's MultiNodeCutDetector instance. It is not
// safe for concurrent use; the owning state machine serializes all calls.
type Detector struct {
	k, h, l int

	reports       map[membership.Endpoint]map[int]membership.Endpoint
	preProposal   map[membership.Endpoint]struct{}
	proposal      map[membership.Endpoint]struct{}
	updatesInProg int
	seenLinkDown  bool
	proposalCount int
}

// New creates a Detector for one configuration change cycle.
func New(k, h, l int) (*Detector, error) {
	if k < KMin || h > k || l > h || l <= 0 {
		return nil, ErrInvalidParameters
	}
	return &Detector{
		k:           k,
		h:           h,
		l:           l,
		reports:     make(map[membership.Endpoint]map[int]membership.Endpoint),
		preProposal: make(map[membership.Endpoint]struct{}),
		proposal:    make(map[membership.Endpoint]struct{}),
	}, nil
}

// ProposalCount returns how many proposals this detector has emitted.
func (d *Detector) ProposalCount() int { return d.proposalCount }

// Aggregate folds one alert's ring numbers into the per-destination report
// counts. It returns a non-nil, non-empty proposal exactly when the last
// watermark crossing this alert triggers drains updatesInProgress back to
// zero; otherwise it returns nil.
func (d *Detector) Aggregate(a Alert) []membership.Endpoint {
	if a.EdgeStatus == membership.EdgeStatusDown {
		d.seenLinkDown = true
	}

	dst := a.EdgeDst
	for _, k := range a.RingNumbers {
		if d.reports[dst] == nil {
			d.reports[dst] = make(map[int]membership.Endpoint)
		}
		if _, already := d.reports[dst][k]; already {
			continue
		}
		d.reports[dst][k] = a.EdgeSrc

		count := len(d.reports[dst])
		if count == d.l {
			d.updatesInProg++
			d.preProposal[dst] = struct{}{}
		}
		if count == d.h {
			delete(d.preProposal, dst)
			d.proposal[dst] = struct{}{}
			d.updatesInProg--
			if d.updatesInProg == 0 {
				return d.emit()
			}
		}
	}
	return nil
}

// emit drains the current proposal set, in a stable order, and bumps the
// proposal counter. The caller (statemachine) re-sorts by ringHash(seed=0)
// before broadcasting, per spec.md §4.J; the order here only needs to be
// internally deterministic for tests.
func (d *Detector) emit() []membership.Endpoint {
	out := make([]membership.Endpoint, 0, len(d.proposal))
	for e := range d.proposal {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	d.proposal = make(map[membership.Endpoint]struct{})
	d.proposalCount++
	return out
}

// InvalidateFailingEdges pushes nodes straddling the watermark past H once
// their own observers have entered the unstable band, as described in
// spec.md §4.C. It is a no-op until at least one DOWN alert has ever been
// aggregated. It may return a freshly emitted proposal.
func (d *Detector) InvalidateFailingEdges(view *membership.View) []membership.Endpoint {
	if !d.seenLinkDown || len(d.preProposal) == 0 {
		return nil
	}

	pending := make([]membership.Endpoint, 0, len(d.preProposal))
	for n := range d.preProposal {
		pending = append(pending, n)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].String() < pending[j].String() })

	var produced []membership.Endpoint
	for _, n := range pending {
		observers := view.ObserversOf(n)
		if observers == nil {
			observers = view.ExpectedObserversOf(n)
		}
		for _, o := range observers {
			_, inProposal := d.proposal[o]
			_, inPre := d.preProposal[o]
			if !inProposal && !inPre {
				continue
			}
			status := membership.EdgeStatusUp
			if view.Contains(n) {
				status = membership.EdgeStatusDown
			}
			ringNums := view.RingNumbers(o, n)
			if len(ringNums) == 0 {
				continue
			}
			alert := Alert{
				EdgeSrc:         o,
				EdgeDst:         n,
				EdgeStatus:      status,
				ConfigurationID: view.CurrentConfiguration().ConfigurationID,
				RingNumbers:     ringNums,
			}
			if out := d.Aggregate(alert); out != nil {
				produced = append(produced, out...)
			}
		}
	}
	return produced
}
