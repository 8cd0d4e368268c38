package configstate

import (
	"fmt"

	"github.com/sozu-io/sozu/internal/wire"
)

// Apply mutates the state according to cmd and returns the single-command
// Diff that was just applied (for audit logging / event broadcast) together
// with any non-fatal warnings. Most mutations are idempotent: re-applying
// the same add is a no-op, and removing an absent entry is a no-op, not an
// error — this matters on crash recovery, where a worker may replay a
// command it already saw before the crash. Listeners are the exception: a
// duplicate AddListener on an already-registered address is a hard error
// (addresses are unique), and RemoveListener rejects a still-active one.
func (s *ConfigState) Apply(cmd wire.Request) (Diff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	diff := Diff{Commands: []wire.Request{cmd}}

	switch cmd.Kind {
	case wire.RequestAddListener:
		if err := s.applyAddListener(cmd.Content); err != nil {
			return Diff{}, err
		}
	case wire.RequestRemoveListener:
		if err := s.applyRemoveListener(cmd.Content.Address); err != nil {
			return Diff{}, err
		}
	case wire.RequestActivateListener:
		s.setListenerActive(cmd.Content.Address, true)
	case wire.RequestDeactivateListener:
		s.setListenerActive(cmd.Content.Address, false)

	case wire.RequestAddCluster:
		if cmd.Content.Cluster == nil {
			return Diff{}, fmt.Errorf("configstate: ADD_CLUSTER missing cluster payload")
		}
		s.Clusters[cmd.Content.Cluster.ClusterID] = *cmd.Content.Cluster
		if _, ok := s.Backends[cmd.Content.Cluster.ClusterID]; !ok {
			s.Backends[cmd.Content.Cluster.ClusterID] = make(map[string]wire.Backend)
		}
	case wire.RequestRemoveCluster:
		clusterID := cmd.Content.ClusterID
		delete(s.Clusters, clusterID)
		delete(s.Backends, clusterID)
		for k, f := range s.HttpFrontends {
			if f.IsClusterID(clusterID) {
				delete(s.HttpFrontends, k)
			}
		}
		for k, f := range s.HttpsFrontends {
			if f.IsClusterID(clusterID) {
				delete(s.HttpsFrontends, k)
			}
		}
		for addr, f := range s.TcpFrontends {
			if f.ClusterID == clusterID {
				delete(s.TcpFrontends, addr)
			}
		}

	case wire.RequestAddHttpFrontend:
		if cmd.Content.HttpFrontend == nil {
			return Diff{}, fmt.Errorf("configstate: ADD_HTTP_FRONTEND missing frontend payload")
		}
		f := *cmd.Content.HttpFrontend
		if !f.Route.Deny {
			if _, ok := s.Clusters[f.Route.ClusterID]; !ok {
				diff.addWarning("http frontend %s references unknown cluster %q", f.RouteKey(), f.Route.ClusterID)
			}
		}
		s.routingTableFor(f.Address)[f.RouteKey()] = f
	case wire.RequestRemoveHttpFrontend:
		if cmd.Content.HttpFrontend == nil {
			return Diff{}, fmt.Errorf("configstate: REMOVE_HTTP_FRONTEND missing frontend payload")
		}
		key := cmd.Content.HttpFrontend.RouteKey()
		delete(s.routingTableFor(cmd.Content.HttpFrontend.Address), key)

	case wire.RequestAddTcpFrontend:
		if cmd.Content.TcpFrontend == nil {
			return Diff{}, fmt.Errorf("configstate: ADD_TCP_FRONTEND missing frontend payload")
		}
		f := *cmd.Content.TcpFrontend
		if _, ok := s.Clusters[f.ClusterID]; !ok {
			diff.addWarning("tcp frontend %s references unknown cluster %q", f.Address, f.ClusterID)
		}
		s.TcpFrontends[f.Address] = f
	case wire.RequestRemoveTcpFrontend:
		delete(s.TcpFrontends, cmd.Content.Address)

	case wire.RequestAddBackend:
		if cmd.Content.Backend == nil {
			return Diff{}, fmt.Errorf("configstate: ADD_BACKEND missing backend payload")
		}
		b := *cmd.Content.Backend
		if _, ok := s.Clusters[b.ClusterID]; !ok {
			diff.addWarning("backend %s references unknown cluster %q", b.BackendID, b.ClusterID)
		}
		if s.Backends[b.ClusterID] == nil {
			s.Backends[b.ClusterID] = make(map[string]wire.Backend)
		}
		s.Backends[b.ClusterID][b.BackendID] = b
	case wire.RequestRemoveBackend:
		if backends, ok := s.Backends[cmd.Content.ClusterID]; ok {
			delete(backends, cmd.Content.BackendID)
		}

	case wire.RequestAddCertificate:
		if cmd.Content.Certificate == nil {
			return Diff{}, fmt.Errorf("configstate: ADD_CERTIFICATE missing certificate payload")
		}
		s.Certificates[cmd.Content.Certificate.Fingerprint] = *cmd.Content.Certificate
	case wire.RequestRemoveCertificate:
		delete(s.Certificates, cmd.Content.Fingerprint)

	default:
		return Diff{}, fmt.Errorf("configstate: %q is not a mutation the state applies directly", cmd.Kind)
	}

	return diff, nil
}

func (s *ConfigState) applyAddListener(content wire.RequestContent) error {
	if content.Listener == nil {
		return fmt.Errorf("configstate: ADD_LISTENER missing listener payload")
	}
	spec := content.Listener
	record := ListenerRecord{Kind: spec.Kind, Active: true}
	var address string
	switch spec.Kind {
	case wire.ListenerHTTP:
		if spec.HTTP == nil {
			return fmt.Errorf("configstate: ADD_LISTENER(HTTP) missing http config")
		}
		record.HTTP = spec.HTTP
		address = spec.HTTP.Address
	case wire.ListenerHTTPS:
		if spec.HTTPS == nil {
			return fmt.Errorf("configstate: ADD_LISTENER(HTTPS) missing https config")
		}
		record.HTTPS = spec.HTTPS
		address = spec.HTTPS.Address
	case wire.ListenerTCP:
		if spec.TCP == nil {
			return fmt.Errorf("configstate: ADD_LISTENER(TCP) missing tcp config")
		}
		record.TCP = spec.TCP
		address = spec.TCP.Address
	default:
		return fmt.Errorf("configstate: unknown listener kind %q", spec.Kind)
	}
	if _, ok := s.Listeners[address]; ok {
		return fmt.Errorf("configstate: listener %s already exists", address)
	}
	s.Listeners[address] = record
	return nil
}

// applyRemoveListener deletes address, refusing (per the supervisor's
// removal-requires-deactivation invariant) while it is still active. An
// absent listener is a no-op, consistent with every other removal here.
func (s *ConfigState) applyRemoveListener(address string) error {
	l, ok := s.Listeners[address]
	if !ok {
		return nil
	}
	if l.Active {
		return fmt.Errorf("configstate: listener %s must be deactivated before removal", address)
	}
	delete(s.Listeners, address)
	return nil
}

// routingTableFor picks HttpsFrontends when address belongs to a listener
// registered as HTTPS, HttpFrontends otherwise (including when the listener
// is not yet known, which happens when frontends are declared ahead of their
// listener in a config file or snapshot).
func (s *ConfigState) routingTableFor(address string) map[wire.RouteKey]wire.HttpFrontend {
	if l, ok := s.Listeners[address]; ok && l.Kind == wire.ListenerHTTPS {
		return s.HttpsFrontends
	}
	return s.HttpFrontends
}

func (s *ConfigState) setListenerActive(address string, active bool) {
	if l, ok := s.Listeners[address]; ok {
		l.Active = active
		s.Listeners[address] = l
	}
}
