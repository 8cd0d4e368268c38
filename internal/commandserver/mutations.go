package commandserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/wire"
)

// handleMutation applies req to ConfigState and fans it out to every
// running worker, streaming a Processing response per worker acknowledgement
// and a terminal Ok (or Failure, naming the workers that errored) once every
// worker has answered.
func (s *Server) handleMutation(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	diff, responses, err := s.pool.FanOutMutation(ctx, req)
	if err != nil {
		s.metrics.RecordCommand("error")
		_ = codec.Send(wire.FailureResponse(req.ID, err.Error()))
		return
	}

	var failed []string
	var acked []uint32
	for wr := range responses {
		_ = codec.Send(wire.ProcessingResponse(req.ID, fmt.Sprintf("worker %d: %s", wr.WorkerID, wr.Response.Status)))
		if wr.Response.Status == wire.ProxyResponseError {
			failed = append(failed, fmt.Sprintf("worker %d: %s", wr.WorkerID, wr.Response.Message))
			continue
		}
		acked = append(acked, wr.WorkerID)
	}

	if len(failed) > 0 {
		s.metrics.RecordCommand("error")
		_ = codec.Send(wire.FailureResponse(req.ID, strings.Join(failed, "; ")))
		return
	}

	if s.onMutate != nil {
		s.onMutate(req, diff, acked)
	}
	s.metrics.RecordCommand("ok")
	_ = codec.Send(wire.OkResponse(req.ID, "applied", nil))
}
