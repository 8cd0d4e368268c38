// Package configstate holds the supervisor's authoritative in-memory
// configuration: listeners, clusters, frontends, backends and certificates.
// It is pure data with no I/O; persistence is handled by
// internal/snapshotstore and distribution to workers by internal/workerpool.
package configstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sozu-io/sozu/internal/wire"
)

// ListenerRecord pairs a listener's kind-tagged configuration with its
// activation flag.
type ListenerRecord struct {
	Kind   wire.ListenerKind       `json:"kind"`
	HTTP   *wire.HttpListenerConfig  `json:"http,omitempty"`
	HTTPS  *wire.HttpsListenerConfig `json:"https,omitempty"`
	TCP    *wire.TcpListenerConfig   `json:"tcp,omitempty"`
	Active bool                    `json:"active"`
}

// ConfigState is the supervisor's authoritative snapshot of routing state.
// All mutation goes through Apply. Build one with New: the zero value has
// nil maps, and Apply on it panics.
type ConfigState struct {
	mu sync.RWMutex

	Listeners      map[string]ListenerRecord            `json:"listeners"`
	Clusters       map[string]wire.Cluster              `json:"clusters"`
	HttpFrontends  map[wire.RouteKey]wire.HttpFrontend  `json:"-"`
	HttpsFrontends map[wire.RouteKey]wire.HttpFrontend  `json:"-"`
	TcpFrontends   map[string]wire.TcpFrontend          `json:"tcp_frontends"`
	Backends       map[string]map[string]wire.Backend   `json:"backends"`
	Certificates   map[string]wire.Certificate          `json:"certificates"`
}

// New returns an empty, ready-to-use ConfigState.
func New() *ConfigState {
	return &ConfigState{
		Listeners:      make(map[string]ListenerRecord),
		Clusters:       make(map[string]wire.Cluster),
		HttpFrontends:  make(map[wire.RouteKey]wire.HttpFrontend),
		HttpsFrontends: make(map[wire.RouteKey]wire.HttpFrontend),
		TcpFrontends:   make(map[string]wire.TcpFrontend),
		Backends:       make(map[string]map[string]wire.Backend),
		Certificates:   make(map[string]wire.Certificate),
	}
}

// Diff is the ordered sequence of commands that transforms one ConfigState
// into another. Ordering follows SPEC_FULL.md §4.2: listeners before
// clusters, clusters before frontends, backends after their cluster,
// removals before additions of conflicting keys.
type Diff struct {
	Commands []wire.Request `json:"commands"`
	Warnings []string       `json:"warnings,omitempty"`
}

func (d *Diff) addWarning(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// sortedKeys returns the keys of m in ascending order, for deterministic
// iteration wherever map order would otherwise leak into the wire format.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot serializes the state to JSON behind the read lock.
func (s *ConfigState) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type wireFrontend struct {
		Key  wire.RouteKey     `json:"key"`
		Rule wire.HttpFrontend `json:"frontend"`
	}
	type onWire struct {
		Listeners      map[string]ListenerRecord          `json:"listeners"`
		Clusters       map[string]wire.Cluster            `json:"clusters"`
		HttpFrontends  []wireFrontend                      `json:"http_frontends"`
		HttpsFrontends []wireFrontend                      `json:"https_frontends"`
		TcpFrontends   map[string]wire.TcpFrontend         `json:"tcp_frontends"`
		Backends       map[string]map[string]wire.Backend  `json:"backends"`
		Certificates   map[string]wire.Certificate        `json:"certificates"`
	}

	out := onWire{
		Listeners:    s.Listeners,
		Clusters:     s.Clusters,
		TcpFrontends: s.TcpFrontends,
		Backends:     s.Backends,
		Certificates: s.Certificates,
	}
	for k, f := range s.HttpFrontends {
		out.HttpFrontends = append(out.HttpFrontends, wireFrontend{Key: k, Rule: f})
	}
	for k, f := range s.HttpsFrontends {
		out.HttpsFrontends = append(out.HttpsFrontends, wireFrontend{Key: k, Rule: f})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("configstate: snapshot: %w", err)
	}
	return data, nil
}

// Restore decodes a Snapshot's output into a fresh ConfigState.
func Restore(data []byte) (*ConfigState, error) {
	type wireFrontend struct {
		Key  wire.RouteKey     `json:"key"`
		Rule wire.HttpFrontend `json:"frontend"`
	}
	type onWire struct {
		Listeners      map[string]ListenerRecord          `json:"listeners"`
		Clusters       map[string]wire.Cluster            `json:"clusters"`
		HttpFrontends  []wireFrontend                      `json:"http_frontends"`
		HttpsFrontends []wireFrontend                      `json:"https_frontends"`
		TcpFrontends   map[string]wire.TcpFrontend         `json:"tcp_frontends"`
		Backends       map[string]map[string]wire.Backend  `json:"backends"`
		Certificates   map[string]wire.Certificate        `json:"certificates"`
	}

	var in onWire
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("configstate: restore: %w", err)
	}

	s := New()
	if in.Listeners != nil {
		s.Listeners = in.Listeners
	}
	if in.Clusters != nil {
		s.Clusters = in.Clusters
	}
	if in.TcpFrontends != nil {
		s.TcpFrontends = in.TcpFrontends
	}
	if in.Backends != nil {
		s.Backends = in.Backends
	}
	if in.Certificates != nil {
		s.Certificates = in.Certificates
	}
	for _, wf := range in.HttpFrontends {
		s.HttpFrontends[wf.Key] = wf.Rule
	}
	for _, wf := range in.HttpsFrontends {
		s.HttpsFrontends[wf.Key] = wf.Rule
	}

	return s, nil
}

// clone produces a deep-enough copy for diffing: a new ConfigState whose
// maps are independent but whose leaf values (immutable records) are shared.
func (s *ConfigState) clone() *ConfigState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := New()
	for k, v := range s.Listeners {
		out.Listeners[k] = v
	}
	for k, v := range s.Clusters {
		out.Clusters[k] = v
	}
	for k, v := range s.HttpFrontends {
		out.HttpFrontends[k] = v
	}
	for k, v := range s.HttpsFrontends {
		out.HttpsFrontends[k] = v
	}
	for k, v := range s.TcpFrontends {
		out.TcpFrontends[k] = v
	}
	for cid, backends := range s.Backends {
		clone := make(map[string]wire.Backend, len(backends))
		for bid, b := range backends {
			clone[bid] = b
		}
		out.Backends[cid] = clone
	}
	for k, v := range s.Certificates {
		out.Certificates[k] = v
	}
	return out
}
