//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/rapidcluster/rapid/internal/config"
)

// InitializeNode builds a Node from cfg: the logger, outbound wsrpc.Client,
// Service, and inbound wsrpc.Server, all wired by google/wire.
func InitializeNode(cfg config.Config) (*Node, error) {
	wire.Build(ProvideLogger, ProvideSender, ProvideService, ProvideServer, ProvideNode)
	return &Node{}, nil
}
