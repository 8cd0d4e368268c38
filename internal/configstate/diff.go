package configstate

import (
	"hash/fnv"
	"reflect"
	"sort"

	"github.com/sozu-io/sozu/internal/wire"
)

// DiffAgainst computes the ordered command sequence that turns other into s.
// Order follows the wiring contract workers rely on when replaying a diff:
// listener removals, then cluster removals, then frontend/backend removals,
// then additions in the same order (listeners, clusters, frontends,
// backends) so nothing ever references a cluster or listener that hasn't
// been added yet.
func (s *ConfigState) DiffAgainst(other *ConfigState) []wire.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	var cmds []wire.Request

	// Removals: listeners, clusters, frontends, backends, certificates no
	// longer present in s.
	for _, addr := range sortedKeys(other.Listeners) {
		if _, ok := s.Listeners[addr]; !ok {
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveListener, Content: wire.RequestContent{Address: addr}})
		}
	}
	for _, id := range sortedKeys(other.Clusters) {
		if _, ok := s.Clusters[id]; !ok {
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveCluster, Content: wire.RequestContent{ClusterID: id}})
		}
	}
	for _, key := range sortedFrontendKeys(other.HttpFrontends) {
		if _, ok := s.HttpFrontends[key]; !ok {
			f := other.HttpFrontends[key]
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveHttpFrontend, Content: wire.RequestContent{HttpFrontend: &f}})
		}
	}
	for _, key := range sortedFrontendKeys(other.HttpsFrontends) {
		if _, ok := s.HttpsFrontends[key]; !ok {
			f := other.HttpsFrontends[key]
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveHttpFrontend, Content: wire.RequestContent{HttpFrontend: &f}})
		}
	}
	for _, addr := range sortedKeys(other.TcpFrontends) {
		if _, ok := s.TcpFrontends[addr]; !ok {
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveTcpFrontend, Content: wire.RequestContent{Address: addr}})
		}
	}
	for clusterID, backends := range other.Backends {
		current := s.Backends[clusterID]
		for _, backendID := range sortedKeys(backends) {
			if _, ok := current[backendID]; !ok {
				cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveBackend, Content: wire.RequestContent{ClusterID: clusterID, BackendID: backendID}})
			}
		}
	}
	for _, fp := range sortedKeys(other.Certificates) {
		if _, ok := s.Certificates[fp]; !ok {
			cmds = append(cmds, wire.Request{Kind: wire.RequestRemoveCertificate, Content: wire.RequestContent{Fingerprint: fp}})
		}
	}

	// Additions/updates: listeners, then clusters, then frontends, then
	// backends, then certificates, so every reference resolves in order.
	for _, addr := range sortedKeys(s.Listeners) {
		l := s.Listeners[addr]
		if prev, ok := other.Listeners[addr]; !ok || prev != l {
			cmds = append(cmds, addListenerCommand(addr, l))
		}
	}
	for _, id := range sortedKeys(s.Clusters) {
		c := s.Clusters[id]
		if prev, ok := other.Clusters[id]; !ok || prev != c {
			cc := c
			cmds = append(cmds, wire.Request{Kind: wire.RequestAddCluster, Content: wire.RequestContent{Cluster: &cc}})
		}
	}
	for _, key := range sortedFrontendKeys(s.HttpFrontends) {
		f := s.HttpFrontends[key]
		if prev, ok := other.HttpFrontends[key]; !ok || !httpFrontendEqual(prev, f) {
			ff := f
			cmds = append(cmds, wire.Request{Kind: wire.RequestAddHttpFrontend, Content: wire.RequestContent{HttpFrontend: &ff}})
		}
	}
	for _, key := range sortedFrontendKeys(s.HttpsFrontends) {
		f := s.HttpsFrontends[key]
		if prev, ok := other.HttpsFrontends[key]; !ok || !httpFrontendEqual(prev, f) {
			ff := f
			cmds = append(cmds, wire.Request{Kind: wire.RequestAddHttpFrontend, Content: wire.RequestContent{HttpFrontend: &ff}})
		}
	}
	for _, addr := range sortedKeys(s.TcpFrontends) {
		f := s.TcpFrontends[addr]
		if prev, ok := other.TcpFrontends[addr]; !ok || !tcpFrontendEqual(prev, f) {
			ff := f
			cmds = append(cmds, wire.Request{Kind: wire.RequestAddTcpFrontend, Content: wire.RequestContent{TcpFrontend: &ff}})
		}
	}
	for clusterID, backends := range s.Backends {
		otherBackends := other.Backends[clusterID]
		for _, backendID := range sortedKeys(backends) {
			b := backends[backendID]
			if prev, ok := otherBackends[backendID]; !ok || !backendEqual(prev, b) {
				bb := b
				cmds = append(cmds, wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{ClusterID: clusterID, Backend: &bb}})
			}
		}
	}
	for _, fp := range sortedKeys(s.Certificates) {
		c := s.Certificates[fp]
		if prev, ok := other.Certificates[fp]; !ok || !certEqual(prev, c) {
			cc := c
			cmds = append(cmds, wire.Request{Kind: wire.RequestAddCertificate, Content: wire.RequestContent{Certificate: &cc}})
		}
	}

	return cmds
}

func addListenerCommand(address string, l ListenerRecord) wire.Request {
	spec := &wire.ListenerSpec{Kind: l.Kind, HTTP: l.HTTP, HTTPS: l.HTTPS, TCP: l.TCP}
	return wire.Request{Kind: wire.RequestAddListener, Content: wire.RequestContent{Listener: spec, Address: address}}
}

func sortedFrontendKeys(m map[wire.RouteKey]wire.HttpFrontend) []wire.RouteKey {
	keys := make([]wire.RouteKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Hostname != keys[j].Hostname {
			return keys[i].Hostname < keys[j].Hostname
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path.String() < keys[j].Path.String()
		}
		return keys[i].Address < keys[j].Address
	})
	return keys
}

func backendEqual(a, b wire.Backend) bool {
	return a.Less(b) == false && b.Less(a) == false
}

func httpFrontendEqual(a, b wire.HttpFrontend) bool {
	return reflect.DeepEqual(a, b)
}

func tcpFrontendEqual(a, b wire.TcpFrontend) bool {
	return reflect.DeepEqual(a, b)
}

func certEqual(a, b wire.Certificate) bool {
	return a.Fingerprint == b.Fingerprint && a.Address == b.Address && a.PEMChain == b.PEMChain
}

// ClusterHash returns a stable hash over a cluster's full routing
// configuration — its own fields, frontends and backends — so clients can
// cheaply detect whether a cluster changed without re-fetching it. Mirrors
// the "clusters hashes" query the original exposes for incremental config
// sync.
func (s *ConfigState) ClusterHash(clusterID string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cluster, ok := s.Clusters[clusterID]
	if !ok {
		return 0, false
	}

	h := fnv.New64a()
	writeString(h, clusterID)
	writeString(h, string(cluster.LoadBalancingPolicy))
	writeString(h, cluster.ProtocolVersion)
	if cluster.StickySessions {
		writeString(h, "sticky")
	}

	for _, key := range sortedFrontendKeys(s.HttpFrontends) {
		if s.HttpFrontends[key].IsClusterID(clusterID) {
			writeString(h, key.Hostname+"|"+key.Path.String()+"|"+key.Address)
		}
	}
	for _, key := range sortedFrontendKeys(s.HttpsFrontends) {
		if s.HttpsFrontends[key].IsClusterID(clusterID) {
			writeString(h, key.Hostname+"|"+key.Path.String()+"|"+key.Address)
		}
	}
	for _, addr := range sortedKeys(s.TcpFrontends) {
		if s.TcpFrontends[addr].ClusterID == clusterID {
			writeString(h, addr)
		}
	}
	for _, backendID := range sortedKeys(s.Backends[clusterID]) {
		b := s.Backends[clusterID][backendID]
		writeString(h, backendID+"|"+b.Address)
	}

	return h.Sum64(), true
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{0})
}
