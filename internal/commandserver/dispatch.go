package commandserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/wire"
)

// mutationKinds routes straight through WorkerPool.FanOutMutation.
var mutationKinds = map[wire.RequestKind]struct{}{
	wire.RequestAddListener:        {},
	wire.RequestRemoveListener:     {},
	wire.RequestActivateListener:   {},
	wire.RequestDeactivateListener: {},
	wire.RequestAddCluster:         {},
	wire.RequestRemoveCluster:      {},
	wire.RequestAddHttpFrontend:    {},
	wire.RequestRemoveHttpFrontend: {},
	wire.RequestAddTcpFrontend:     {},
	wire.RequestRemoveTcpFrontend:  {},
	wire.RequestAddBackend:         {},
	wire.RequestRemoveBackend:      {},
	wire.RequestAddCertificate:     {},
	wire.RequestRemoveCertificate:  {},
}

// handleConn reads framed Requests off conn until it closes, dispatching
// each one and writing its Response(s) back before reading the next.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	codec := channelcodec.New(conn, s.cfg.CodecConfig)
	defer func() { _ = codec.Close() }()

	clientAddr := conn.RemoteAddr()

	for {
		var req wire.Request
		if err := codec.RecvInto(&req); err != nil {
			if !errors.Is(err, channelcodec.ErrPeerClosed) {
				logger.Debug("command server: read error", "client", clientAddr, "error", err)
			}
			return
		}

		if err := s.validate.Struct(req); err != nil {
			_ = codec.Send(wire.FailureResponse(req.ID, fmt.Sprintf("invalid request: %v", err)))
			continue
		}

		if req.Kind == wire.RequestSubscribeEvents {
			s.handleSubscribeEvents(ctx, req, codec)
			return
		}

		s.dispatch(ctx, req, codec)

		if req.Kind == wire.RequestShutdown {
			return
		}
	}
}

// dispatch routes a single validated Request to its handler and writes the
// resulting Response(s) to codec.
func (s *Server) dispatch(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	if _, isMutation := mutationKinds[req.Kind]; isMutation {
		s.handleMutation(ctx, req, codec)
		return
	}

	switch req.Kind {
	case wire.RequestQueryClusters, wire.RequestQueryClustersHashes, wire.RequestQueryCertificates, wire.RequestQueryMetrics:
		s.handleQuery(ctx, req, codec)
	case wire.RequestListFrontends:
		s.handleListFrontends(req, codec)
	case wire.RequestListListeners:
		s.handleListListeners(req, codec)
	case wire.RequestStatus:
		s.handleStatus(req, codec)
	case wire.RequestLaunchWorker:
		s.handleLaunchWorker(ctx, req, codec)
	case wire.RequestUpgradeMain:
		s.handleUpgradeMain(ctx, req, codec)
	case wire.RequestUpgradeWorkers:
		s.handleUpgradeWorkers(ctx, req, codec)
	case wire.RequestShutdown:
		s.handleShutdown(ctx, req, codec)
	default:
		_ = codec.Send(wire.FailureResponse(req.ID, fmt.Sprintf("unhandled request kind %q", req.Kind)))
	}
}
