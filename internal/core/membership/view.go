package membership

import (
	"encoding/binary"

	"github.com/rapidcluster/rapid/internal/core/ring"
)

// KMin is the minimum number of rings the cut detector can safely reason
// about (spec.md §4.C).
const KMin = 3

// DefaultK is the protocol's default ring count.
const DefaultK = 10

// View is the K-ring MembershipView (spec.md §3/§4.B). It is owned
// exclusively by one state machine; nothing outside that owner may mutate
// it. All read operations are O(log n) expected; observersOf/subjectsOf
// memoize their result per endpoint until the next Add/Delete invalidates
// it.
type View struct {
	k             int
	rings         []*ring.SortableSet[Endpoint]
	seen          map[NodeId]struct{}
	endpointNode  map[Endpoint]NodeId
	observerCache map[Endpoint][]Endpoint
	subjectCache  map[Endpoint][]Endpoint
	cachedConfig  *Configuration
}

// NewView creates an empty view with k rings. A k below KMin is raised to
// KMin.
func NewView(k int) *View {
	if k < KMin {
		k = KMin
	}
	v := &View{
		k:             k,
		rings:         make([]*ring.SortableSet[Endpoint], k),
		seen:          make(map[NodeId]struct{}),
		endpointNode:  make(map[Endpoint]NodeId),
		observerCache: make(map[Endpoint][]Endpoint),
		subjectCache:  make(map[Endpoint][]Endpoint),
	}
	for seed := 0; seed < k; seed++ {
		s := seed
		v.rings[s] = ring.New(
			func(e Endpoint) uint64 { return ring.Hash(e.HostBytes(), e.Port, s) },
			func(e Endpoint) string { return e.key() },
		)
	}
	return v
}

// K returns the configured ring count.
func (v *View) K() int { return v.k }

// Size returns the number of endpoints currently in the ring.
func (v *View) Size() int { return v.rings[0].Len() }

// Contains reports whether e is currently a ring member.
func (v *View) Contains(e Endpoint) bool {
	_, ok := v.endpointNode[e]
	return ok
}

// NodeIDOf returns the node id an endpoint joined with, if present.
func (v *View) NodeIDOf(e Endpoint) (NodeId, bool) {
	id, ok := v.endpointNode[e]
	return id, ok
}

// IsSafeToJoin classifies a join attempt without mutating the view.
func (v *View) IsSafeToJoin(e Endpoint, id NodeId) JoinStatus {
	if existing, ok := v.endpointNode[e]; ok {
		if existing == id {
			return SameNodeAlreadyInRing
		}
		return HostnameAlreadyInRing
	}
	if _, ok := v.seen[id]; ok {
		return UUIDAlreadyInRing
	}
	return SafeToJoin
}

// RingAdd inserts endpoint into all K rings under node id. It returns
// ErrUUIDAlreadySeen or ErrNodeAlreadyInRing on a precondition violation;
// callers are expected to have already checked IsSafeToJoin, but RingAdd
// re-validates so it is safe to call directly.
func (v *View) RingAdd(e Endpoint, id NodeId) error {
	if _, ok := v.seen[id]; ok {
		return ErrUUIDAlreadySeen
	}
	if _, ok := v.endpointNode[e]; ok {
		return ErrNodeAlreadyInRing
	}

	affected := make(map[Endpoint]struct{})
	for k := 0; k < v.k; k++ {
		v.rings[k].Add(e)
		if pred, ok := v.rings[k].Predecessor(e); ok && pred != e {
			affected[pred] = struct{}{}
		}
		if succ, ok := v.rings[k].Successor(e); ok && succ != e {
			affected[succ] = struct{}{}
		}
	}
	v.seen[id] = struct{}{}
	v.endpointNode[e] = id
	v.invalidate(affected)
	return nil
}

// RingDelete removes endpoint (and its node id) from all K rings.
func (v *View) RingDelete(e Endpoint) error {
	id, ok := v.endpointNode[e]
	if !ok {
		return ErrNodeNotInRing
	}

	affected := make(map[Endpoint]struct{})
	for k := 0; k < v.k; k++ {
		pred, predOK := v.rings[k].Predecessor(e)
		succ, succOK := v.rings[k].Successor(e)
		v.rings[k].Remove(e)
		if predOK && pred != e {
			affected[pred] = struct{}{}
		}
		if succOK && succ != e {
			affected[succ] = struct{}{}
		}
	}
	delete(v.seen, id)
	delete(v.endpointNode, e)
	affected[e] = struct{}{}
	v.invalidate(affected)
	return nil
}

func (v *View) invalidate(affected map[Endpoint]struct{}) {
	for e := range affected {
		delete(v.observerCache, e)
		delete(v.subjectCache, e)
	}
	v.cachedConfig = nil
}

// ObserversOf returns the K-length sequence of e's ring-successors, one per
// ring, in ring order. Duplicates occur when exactly two endpoints share the
// ring. Returns nil if e is not a member or the ring has at most one member.
func (v *View) ObserversOf(e Endpoint) []Endpoint {
	if cached, ok := v.observerCache[e]; ok {
		return cached
	}
	if v.rings[0].Len() <= 1 {
		return nil
	}
	if _, ok := v.endpointNode[e]; !ok {
		return nil
	}
	obs := make([]Endpoint, v.k)
	for k := 0; k < v.k; k++ {
		succ, _ := v.rings[k].Successor(e)
		obs[k] = succ
	}
	v.observerCache[e] = obs
	return obs
}

// ExpectedObserversOf computes what ObserversOf(e) would return if e were
// inserted, without mutating the view. Used to synthesize join alerts before
// the joiner is actually added. Returns nil if the ring is empty.
func (v *View) ExpectedObserversOf(e Endpoint) []Endpoint {
	if v.rings[0].Len() == 0 {
		return nil
	}
	obs := make([]Endpoint, v.k)
	for k := 0; k < v.k; k++ {
		succ, ok := v.rings[k].LowerBoundSuccessor(e)
		if !ok {
			return nil
		}
		obs[k] = succ
	}
	return obs
}

// SubjectsOf returns the K ring-predecessors of e: the endpoints e observes.
func (v *View) SubjectsOf(e Endpoint) []Endpoint {
	if cached, ok := v.subjectCache[e]; ok {
		return cached
	}
	if v.rings[0].Len() <= 1 {
		return nil
	}
	if _, ok := v.endpointNode[e]; !ok {
		return nil
	}
	subs := make([]Endpoint, v.k)
	for k := 0; k < v.k; k++ {
		pred, _ := v.rings[k].Predecessor(e)
		subs[k] = pred
	}
	v.subjectCache[e] = subs
	return subs
}

// RingNumbers returns the sorted ring indices on which observer is the
// ring-successor of subject.
func (v *View) RingNumbers(observer, subject Endpoint) []int {
	obs := v.ObserversOf(subject)
	var nums []int
	for k, o := range obs {
		if o == observer {
			nums = append(nums, k)
		}
	}
	return nums
}

// Endpoints returns ring[0] in ring order (the canonical member ordering).
func (v *View) Endpoints() []Endpoint {
	src := v.rings[0].Ordered()
	out := make([]Endpoint, len(src))
	copy(out, src)
	return out
}

// CurrentConfiguration returns the memoized current Configuration,
// recomputing it if the view changed since the last call. NodeIds is
// index-aligned with Endpoints (NodeIds[i] is Endpoints[i]'s node id).
func (v *View) CurrentConfiguration() Configuration {
	if v.cachedConfig != nil {
		return *v.cachedConfig
	}
	ring0 := v.Endpoints()
	ids := make([]NodeId, 0, len(ring0))
	for _, e := range ring0 {
		ids = append(ids, v.endpointNode[e])
	}
	cfg := Configuration{
		ConfigurationID: computeConfigurationID(v.seen, ring0),
		Endpoints:       ring0,
		NodeIds:         ids,
	}
	v.cachedConfig = &cfg
	return cfg
}

// computeConfigurationID implements the wire-fixed hash of spec.md §6: a
// wrapping sum of H64 over every seen node id then every ring[0] endpoint,
// in ring order. Iteration order over the node-id set does not matter
// because addition is commutative.
func computeConfigurationID(seen map[NodeId]struct{}, ring0 []Endpoint) uint64 {
	h := uint64(1)
	var buf8 [8]byte
	for id := range seen {
		binary.LittleEndian.PutUint64(buf8[:], uint64(id.High))
		h += ring.H64(buf8[:])
		binary.LittleEndian.PutUint64(buf8[:], uint64(id.Low))
		h += ring.H64(buf8[:])
	}
	var buf4 [4]byte
	for _, e := range ring0 {
		h += ring.H64(e.HostBytes())
		binary.LittleEndian.PutUint32(buf4[:], uint32(e.Port))
		h += ring.H64(buf4[:])
	}
	return h
}
