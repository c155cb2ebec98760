package service

import (
	"context"
	"time"

	"github.com/rapidcluster/rapid/internal/core/broadcast"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/core/statemachine"
	"github.com/rapidcluster/rapid/internal/wire"
)

// Service is the Membership Service facade (spec.md §4.K/§6): it owns the
// node's statemachine.Actor and adds the one piece of logic the actor itself
// never performs — the outbound, client-side Join call and its retry
// policy, since the actor only ever admits joiners, it never becomes one.
type Service struct {
	self   membership.Endpoint
	cfg    Config
	sender broadcast.Sender
	log    log.Log

	actor *statemachine.Actor
}

// New constructs a Service bound to self. The underlying actor is created
// immediately (its mailbox goroutine is running) but stays in
// statemachine.StateInitial until StartSeed or Join succeeds.
func New(self membership.Endpoint, cfg Config, sender broadcast.Sender, logger log.Log) *Service {
	return &Service{
		self:   self,
		cfg:    cfg,
		sender: sender,
		log:    logger,
		actor:  statemachine.New(self, cfg.Actor, sender, logger),
	}
}

// StartSeed starts this node as the first member of a brand-new cluster: no
// Join round-trip, since there is no one to ask.
func (s *Service) StartSeed(metadata membership.Metadata) {
	s.actor.Bootstrap([]statemachine.Member{{Endpoint: s.self, NodeID: membership.NewNodeId(), Metadata: metadata}})
	s.actor.Start()
}

// Join contacts seed and retries per spec.md §6's policy until admitted,
// joinAttempts is exhausted, or ctx is cancelled: a fresh NodeId on
// UUID_ALREADY_IN_RING, a joinDelay pause on HOSTNAME_ALREADY_IN_RING or
// VIEW_CHANGE_IN_PROGRESS (and on a transport error), and immediate success
// on SAFE_TO_JOIN or SAME_NODE_ALREADY_IN_RING.
func (s *Service) Join(ctx context.Context, seed membership.Endpoint, metadata membership.Metadata) error {
	nodeID := membership.NewNodeId()

	for attempt := 0; attempt < s.cfg.JoinAttempts; attempt++ {
		resp, err := s.sendJoin(ctx, seed, nodeID, metadata)
		if err != nil {
			s.log.Debug("join attempt failed", log.ErrorWithKey("cause", err))
			if !s.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		switch resp.StatusCode {
		case wire.SafeToJoin, wire.SameNodeAlreadyInRing:
			s.installView(resp, nodeID, metadata)
			s.actor.Start()
			return nil

		case wire.UUIDAlreadyInRing:
			nodeID = membership.NewNodeId()
			continue

		case wire.HostnameAlreadyInRing, wire.ViewChangeInProgress:
			if !s.wait(ctx) {
				return ctx.Err()
			}

		default:
			return &JoinError{StatusCode: resp.StatusCode}
		}
	}

	return ErrJoinExhausted
}

func (s *Service) sendJoin(ctx context.Context, seed membership.Endpoint, nodeID membership.NodeId, metadata membership.Metadata) (wire.JoinResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.JoinRequestTimeout)
	defer cancel()

	resp, err := s.sender.SendRequest(reqCtx, seed, wire.JoinMessage{
		Sender:   s.self,
		NodeID:   nodeID,
		Metadata: metadata,
	})
	if err != nil {
		return wire.JoinResponse{}, err
	}
	jr, ok := resp.(wire.JoinResponse)
	if !ok {
		return wire.JoinResponse{}, ErrUnexpectedResponse
	}
	return jr, nil
}

// installView seeds the actor's view from an admitting JoinResponse: every
// member the response named, reconstructing each one's metadata from the
// parallel MetadataKeys/MetadataValues arrays, plus self's own metadata
// (never echoed back by the responder, since self just chose it).
func (s *Service) installView(resp wire.JoinResponse, selfNodeID membership.NodeId, selfMetadata membership.Metadata) {
	metadataByEndpoint := make(map[membership.Endpoint]membership.Metadata, len(resp.MetadataKeys))
	for i, ep := range resp.MetadataKeys {
		if i < len(resp.MetadataValues) {
			metadataByEndpoint[ep] = resp.MetadataValues[i]
		}
	}

	members := make([]statemachine.Member, 0, len(resp.Endpoints))
	for i, ep := range resp.Endpoints {
		m := statemachine.Member{Endpoint: ep, Metadata: metadataByEndpoint[ep]}
		if i < len(resp.Identifiers) {
			m.NodeID = resp.Identifiers[i]
		}
		if ep == s.self {
			m.NodeID = selfNodeID
			m.Metadata = selfMetadata
		}
		members = append(members, m)
	}
	s.actor.Bootstrap(members)
}

func (s *Service) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.JoinDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// HandleRequest delivers one inbound peer request to the underlying actor;
// internal/transport wires this to its server-side dispatch.
func (s *Service) HandleRequest(ctx context.Context, req wire.Request) (wire.Response, error) {
	return s.actor.HandleRequest(ctx, req)
}

// GetMemberList returns the current ring[0] membership in ring order.
func (s *Service) GetMemberList() []membership.Endpoint {
	return s.actor.GetMemberList()
}

// GetClusterMetadata returns a defensive copy of every member's metadata.
func (s *Service) GetClusterMetadata() map[membership.Endpoint]membership.Metadata {
	return s.actor.GetMetadata()
}

// CurrentConfiguration returns the current Configuration snapshot.
func (s *Service) CurrentConfiguration() membership.Configuration {
	return s.actor.CurrentConfiguration()
}

// Subscribe registers a new ClusterEvent listener.
func (s *Service) Subscribe() <-chan ClusterEvent {
	return s.actor.Subscribe()
}

// Leave announces this node's voluntary, fire-and-forget departure.
func (s *Service) Leave() {
	s.actor.Leave()
}

// Shutdown stops the underlying actor synchronously.
func (s *Service) Shutdown() {
	s.actor.Shutdown()
}
