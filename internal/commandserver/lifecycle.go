package commandserver

import (
	"context"
	"fmt"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/wire"
)

func (s *Server) handleLaunchWorker(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	id := s.pool.NextID()
	if _, err := s.pool.Spawn(ctx, id); err != nil {
		_ = codec.Send(wire.FailureResponse(req.ID, fmt.Sprintf("launch worker: %v", err)))
		return
	}
	go s.pool.Supervise(context.Background(), id)
	_ = codec.Send(wire.OkResponse(req.ID, fmt.Sprintf("worker %d launched", id), nil))
}

func (s *Server) handleUpgradeMain(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	if s.upgrader == nil {
		_ = codec.Send(wire.FailureResponse(req.ID, "upgrade support is not configured"))
		return
	}
	if err := s.upgrader.UpgradeMain(ctx); err != nil {
		_ = codec.Send(wire.FailureResponse(req.ID, fmt.Sprintf("upgrade main: %v", err)))
		return
	}
	_ = codec.Send(wire.OkResponse(req.ID, "main upgraded", nil))
}

func (s *Server) handleUpgradeWorkers(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	if s.upgrader == nil {
		_ = codec.Send(wire.FailureResponse(req.ID, "upgrade support is not configured"))
		return
	}
	if err := s.upgrader.UpgradeWorkers(ctx); err != nil {
		_ = codec.Send(wire.FailureResponse(req.ID, fmt.Sprintf("upgrade workers: %v", err)))
		return
	}
	_ = codec.Send(wire.OkResponse(req.ID, "workers upgraded", nil))
}

// handleShutdown gracefully stops every worker and the command server
// itself. The Ok response is sent before the listener closes so the client
// observing it knows the stop was accepted.
func (s *Server) handleShutdown(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	for _, w := range s.pool.Workers() {
		if err := s.pool.Stop(ctx, w.ID); err != nil {
			logger.Warn("shutdown: failed to stop worker", "worker_id", w.ID, "error", err)
		}
	}
	_ = codec.Send(wire.OkResponse(req.ID, "shutting down", nil))
	go s.Stop()
}

// handleSubscribeEvents streams Event messages to the client until it
// disconnects or ctx is cancelled. It does not return a terminal Response;
// the subscription itself is the session.
func (s *Server) handleSubscribeEvents(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	_ = codec.Send(wire.OkResponse(req.ID, "subscribed", nil))

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			content := &wire.ResponseContent{Kind: wire.ContentEvent, Event: &ev}
			if err := codec.Send(wire.OkResponse(req.ID, "", content)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		}
	}
}
