package membership

import "errors"

// Sentinel view errors. Per spec.md §7 these are MembershipViewError kinds:
// always internal, indicating a violated invariant or an out-of-order
// alert. Callers that hit ErrUUIDAlreadySeen or ErrNodeAlreadyInRing during
// normal alert processing should record and suppress them. When the state
// machine hits one while applying a decided proposal, it logs it at Error
// level and skips that endpoint (see statemachine.ErrJoinerIDNotObserved for
// the related apply-time case).
var (
	ErrNodeNotInRing   = errors.New("membership: endpoint not in ring")
	ErrNodeAlreadyInRing = errors.New("membership: endpoint already in ring")
	ErrUUIDAlreadySeen   = errors.New("membership: node id already seen")
)
