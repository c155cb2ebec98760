// Package injector wires a node's config, transport, and service together
// with google/wire, in the same two-file shape (a //go:build wireinject
// declaration plus a hand-verified wire_gen.go) as the teacher's own
// internal/injector/injector.go.
package injector

import (
	"github.com/rapidcluster/rapid/internal/config"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/service"
	"github.com/rapidcluster/rapid/internal/transport/wsrpc"
)

// Node bundles the constructed Service with the wsrpc.Server that exposes
// it on the network — the two objects cmd/rapid-agent needs to start and,
// on shutdown, tear down in the right order (service first, via Leave and
// Shutdown, then the server).
type Node struct {
	Service *service.Service
	Server  *wsrpc.Server
}

// ProvideLogger constructs the process-wide Logger.
func ProvideLogger() *log.Logger {
	return log.New(log.LevelInfo)
}

// ProvideSender constructs the outbound wsrpc.Client every peer RPC goes
// through.
func ProvideSender() *wsrpc.Client {
	return wsrpc.NewClient()
}

// ProvideService constructs the node's Service, bound to its configured
// self endpoint and tuning parameters.
func ProvideService(cfg config.Config, sender *wsrpc.Client, logger *log.Logger) *service.Service {
	return service.New(cfg.SelfEndpoint(), cfg.ServiceConfig(), sender, logger)
}

// ProvideServer constructs the inbound wsrpc.Server dispatching to svc.
func ProvideServer(svc *service.Service, logger *log.Logger) *wsrpc.Server {
	return wsrpc.NewServer(svc.HandleRequest, logger)
}

// ProvideNode bundles the constructed Service and Server.
func ProvideNode(svc *service.Service, srv *wsrpc.Server) *Node {
	return &Node{Service: svc, Server: srv}
}
