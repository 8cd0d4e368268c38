package commandserver

import (
	"context"
	"fmt"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/wire"
)

// handleQuery serves QueryClusters, QueryClustersHashes and QueryCertificates
// directly from the authoritative ConfigState, and QueryMetrics by
// broadcasting to every worker and aggregating their self-reported metrics.
func (s *Server) handleQuery(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	switch req.Kind {
	case wire.RequestQueryClusters:
		s.handleQueryClusters(req, codec)
	case wire.RequestQueryClustersHashes:
		s.handleQueryClustersHashes(req, codec)
	case wire.RequestQueryCertificates:
		s.handleQueryCertificates(req, codec)
	case wire.RequestQueryMetrics:
		s.handleQueryMetrics(ctx, req, codec)
	}
}

func (s *Server) handleQueryClusters(req wire.Request, codec *channelcodec.Codec) {
	ids := []string{req.Content.ClusterID}
	if req.Content.ClusterID == "" {
		ids = s.state.ClusterIDs()
	}

	var answers []wire.QueryAnswerCluster
	for _, id := range ids {
		if answer, ok := s.state.ClusterAnswer(id); ok {
			answers = append(answers, answer)
		}
	}

	content := &wire.ResponseContent{
		Kind:  wire.ContentQuery,
		Query: map[string]wire.QueryAnswer{"main": {Kind: wire.QueryAnswerClusters, Clusters: answers}},
	}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleQueryClustersHashes(req wire.Request, codec *channelcodec.Codec) {
	hashes := make(map[string]uint64)
	for _, id := range s.state.ClusterIDs() {
		if h, ok := s.state.ClusterHash(id); ok {
			hashes[id] = h
		}
	}
	content := &wire.ResponseContent{
		Kind:  wire.ContentQuery,
		Query: map[string]wire.QueryAnswer{"main": {Kind: wire.QueryAnswerClustersHashes, ClustersHashes: hashes}},
	}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleQueryCertificates(req wire.Request, codec *channelcodec.Codec) {
	content := &wire.ResponseContent{
		Kind:  wire.ContentQuery,
		Query: map[string]wire.QueryAnswer{"main": {Kind: wire.QueryAnswerCertificates, Certificates: s.state.CertificatesView()}},
	}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleQueryMetrics(ctx context.Context, req wire.Request, codec *channelcodec.Codec) {
	responses := s.pool.Broadcast(ctx, wire.Request{ID: req.ID, Version: wire.ProtocolVersion, Kind: wire.RequestQueryMetrics})

	aggregated := wire.AggregatedMetricsData{
		Main:    make(map[string]wire.FilteredData),
		Workers: make(map[string]wire.WorkerMetrics),
	}
	for wr := range responses {
		if wr.Response.Status != wire.ProxyResponseOk || wr.Response.Content == nil || wr.Response.Content.Metrics == nil {
			continue
		}
		aggregated.Workers[fmt.Sprintf("%d", wr.WorkerID)] = *wr.Response.Content.Metrics
	}

	content := &wire.ResponseContent{Kind: wire.ContentMetrics, Metrics: &aggregated}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleListFrontends(req wire.Request, codec *channelcodec.Codec) {
	list := s.state.Frontends()
	content := &wire.ResponseContent{Kind: wire.ContentFrontendList, FrontendList: &list}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleListListeners(req wire.Request, codec *channelcodec.Codec) {
	list := s.state.ListenersView()
	content := &wire.ResponseContent{Kind: wire.ContentListenersList, ListenersList: &list}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}

func (s *Server) handleStatus(req wire.Request, codec *channelcodec.Codec) {
	content := &wire.ResponseContent{Kind: wire.ContentStatus, Status: s.pool.Workers()}
	_ = codec.Send(wire.OkResponse(req.ID, "", content))
}
