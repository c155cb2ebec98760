package wsrpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/wire"
	"github.com/rapidcluster/rapid/pkg/generic"
)

// Path is the HTTP path the server upgrades and the client dials.
const Path = "/rapid/v1"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler answers one inbound wire.Request; internal/service.Service's
// HandleRequest method satisfies this signature.
type Handler func(ctx context.Context, req wire.Request) (wire.Response, error)

// Server upgrades every connection on Path to a websocket, reads exactly one
// gob-framed wire.Request, dispatches it to Handler, writes the
// gob-framed wire.Response, and closes the connection — matching the
// dial-per-call shape Client uses on the other end.
type Server struct {
	Handler Handler
	log     log.Log
	bufPool *generic.Pool[*bytes.Buffer]
}

// NewServer returns a Server dispatching to handler.
func NewServer(handler Handler, logger log.Log) *Server {
	return &Server{
		Handler: handler,
		log:     logger,
		bufPool: generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }),
	}
}

// RegisterHandlers attaches the server's websocket upgrade endpoint to mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(Path, s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("wsrpc: upgrade failed", log.ErrorWithKey("cause", err))
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.log.Debug("wsrpc: read request failed", log.ErrorWithKey("cause", err))
		return
	}

	var req wire.Request
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&req); err != nil {
		s.log.Debug("wsrpc: decode request failed", log.ErrorWithKey("cause", err))
		return
	}

	resp, err := s.Handler(r.Context(), req)
	if err != nil {
		s.log.Debug("wsrpc: handler failed", log.ErrorWithKey("cause", err))
		return
	}

	buf := s.bufPool.Get()
	buf.Reset()
	defer s.bufPool.Put(buf)

	if err := gob.NewEncoder(buf).Encode(&resp); err != nil {
		s.log.Debug("wsrpc: encode response failed", log.ErrorWithKey("cause", err))
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		s.log.Debug("wsrpc: write response failed", log.ErrorWithKey("cause", err))
	}
}

// ListenAndServe runs an HTTP server with s registered on Path, blocking
// until ctx is cancelled (mirroring the teacher's WebSocketServer.Start
// shape in internal/server/websocket.go, but request/response rather than
// a broadcast chat room, and with an actual shutdown rather than a TODO:
// on cancellation it calls http.Server.Close, which closes the listener and
// open connections immediately without waiting for in-flight requests).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)

	httpServer := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return httpServer.Close()
	}
}
