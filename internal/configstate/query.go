package configstate

import "github.com/sozu-io/sozu/internal/wire"

// ListenersView returns a point-in-time projection of every declared
// listener, for the ListListeners request.
func (s *ConfigState) ListenersView() wire.ListenersList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := wire.ListenersList{
		HttpListeners:  make(map[string]wire.ListenerEntry[wire.HttpListenerConfig]),
		HttpsListeners: make(map[string]wire.ListenerEntry[wire.HttpsListenerConfig]),
		TcpListeners:   make(map[string]wire.ListenerEntry[wire.TcpListenerConfig]),
	}
	for addr, l := range s.Listeners {
		switch l.Kind {
		case wire.ListenerHTTP:
			if l.HTTP != nil {
				out.HttpListeners[addr] = wire.ListenerEntry[wire.HttpListenerConfig]{Config: *l.HTTP, Active: l.Active}
			}
		case wire.ListenerHTTPS:
			if l.HTTPS != nil {
				out.HttpsListeners[addr] = wire.ListenerEntry[wire.HttpsListenerConfig]{Config: *l.HTTPS, Active: l.Active}
			}
		case wire.ListenerTCP:
			if l.TCP != nil {
				out.TcpListeners[addr] = wire.ListenerEntry[wire.TcpListenerConfig]{Config: *l.TCP, Active: l.Active}
			}
		}
	}
	return out
}

// Frontends returns a point-in-time projection of every declared frontend,
// for the ListFrontends request.
func (s *ConfigState) Frontends() wire.ListedFrontends {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := wire.ListedFrontends{
		HttpFrontends:  make([]wire.HttpFrontend, 0, len(s.HttpFrontends)),
		HttpsFrontends: make([]wire.HttpFrontend, 0, len(s.HttpsFrontends)),
		TcpFrontends:   make([]wire.TcpFrontend, 0, len(s.TcpFrontends)),
	}
	for _, key := range sortedFrontendKeys(s.HttpFrontends) {
		out.HttpFrontends = append(out.HttpFrontends, s.HttpFrontends[key])
	}
	for _, key := range sortedFrontendKeys(s.HttpsFrontends) {
		out.HttpsFrontends = append(out.HttpsFrontends, s.HttpsFrontends[key])
	}
	for _, addr := range sortedKeys(s.TcpFrontends) {
		out.TcpFrontends = append(out.TcpFrontends, s.TcpFrontends[addr])
	}
	return out
}

// ClusterAnswer bundles one cluster's configuration, frontends and backends,
// for the QueryClusters request. Reports false if clusterID is unknown.
func (s *ConfigState) ClusterAnswer(clusterID string) (wire.QueryAnswerCluster, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cluster, ok := s.Clusters[clusterID]
	if !ok {
		return wire.QueryAnswerCluster{}, false
	}

	answer := wire.QueryAnswerCluster{Configuration: &cluster}
	for _, key := range sortedFrontendKeys(s.HttpFrontends) {
		if f := s.HttpFrontends[key]; f.IsClusterID(clusterID) {
			answer.HttpFrontends = append(answer.HttpFrontends, f)
		}
	}
	for _, key := range sortedFrontendKeys(s.HttpsFrontends) {
		if f := s.HttpsFrontends[key]; f.IsClusterID(clusterID) {
			answer.HttpsFrontends = append(answer.HttpsFrontends, f)
		}
	}
	for _, addr := range sortedKeys(s.TcpFrontends) {
		if f := s.TcpFrontends[addr]; f.ClusterID == clusterID {
			answer.TcpFrontends = append(answer.TcpFrontends, f)
		}
	}
	for _, backendID := range sortedKeys(s.Backends[clusterID]) {
		answer.Backends = append(answer.Backends, s.Backends[clusterID][backendID])
	}
	return answer, true
}

// ClusterIDs returns every known cluster id in sorted order.
func (s *ConfigState) ClusterIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.Clusters)
}

// CertificatesView returns a point-in-time copy of the certificate set, for the
// QueryCertificates request.
func (s *ConfigState) CertificatesView() map[string]wire.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]wire.Certificate, len(s.Certificates))
	for k, v := range s.Certificates {
		out[k] = v
	}
	return out
}
