package statemachine

import (
	"context"

	"github.com/rapidcluster/rapid/internal/core/broadcast"
	"github.com/rapidcluster/rapid/internal/core/failuredetector"
	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/wire"
)

// wireProber implements failuredetector.Prober over the same Sender the
// Broadcaster uses, so a probe round-trip goes through the same transport
// (spec.md §4.D: ProbeMessage/ProbeResponse).
type wireProber struct {
	self   membership.Endpoint
	sender broadcast.Sender
}

func newWireProber(self membership.Endpoint, sender broadcast.Sender) *wireProber {
	return &wireProber{self: self, sender: sender}
}

func (p *wireProber) Probe(ctx context.Context, subject membership.Endpoint) (failuredetector.ProbeStatus, error) {
	resp, err := p.sender.SendRequest(ctx, subject, wire.ProbeMessage{Sender: p.self})
	if err != nil {
		return 0, err
	}
	if pr, ok := resp.(wire.ProbeResponse); ok && pr.Status == wire.ProbeBootstrapping {
		return failuredetector.ProbeBootstrapping, nil
	}
	return failuredetector.ProbeOK, nil
}
