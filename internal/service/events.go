package service

import "github.com/rapidcluster/rapid/internal/core/statemachine"

// ClusterEvent and its variants are re-exported so callers of Subscribe
// never need to import internal/core/statemachine directly (spec.md §6:
// ClusterEvent is one of ViewChangeProposal, ViewChange, Kicked).
type ClusterEvent = statemachine.ClusterEvent
type ViewChangeProposal = statemachine.ViewChangeProposal
type ViewChange = statemachine.ViewChange
type ViewChangeOneStepFailed = statemachine.ViewChangeOneStepFailed
type Kicked = statemachine.Kicked
