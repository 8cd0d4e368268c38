package configstate

import (
	"testing"

	"github.com/sozu-io/sozu/internal/wire"
)

func addCluster(t *testing.T, s *ConfigState, id string) {
	t.Helper()
	_, err := s.Apply(wire.Request{
		Kind:    wire.RequestAddCluster,
		Content: wire.RequestContent{Cluster: &wire.Cluster{ClusterID: id, LoadBalancingPolicy: wire.LoadBalancingRoundRobin}},
	})
	if err != nil {
		t.Fatalf("add cluster: %v", err)
	}
}

func TestApplyAddRemoveBackendIsIdempotent(t *testing.T) {
	s := New()
	addCluster(t, s, "web")

	backend := wire.Backend{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:8080"}
	add := wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}}

	if _, err := s.Apply(add); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := s.Apply(add); err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(s.Backends["web"]) != 1 {
		t.Fatalf("want 1 backend, got %d", len(s.Backends["web"]))
	}

	remove := wire.Request{Kind: wire.RequestRemoveBackend, Content: wire.RequestContent{ClusterID: "web", BackendID: "b1"}}
	if _, err := s.Apply(remove); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if _, err := s.Apply(remove); err != nil {
		t.Fatalf("second remove (absent) should be a no-op: %v", err)
	}
	if len(s.Backends["web"]) != 0 {
		t.Fatalf("want 0 backends after remove, got %d", len(s.Backends["web"]))
	}
}

func TestApplyAddListenerRejectsDuplicate(t *testing.T) {
	s := New()
	http := wire.DefaultHttpListenerConfig("0.0.0.0:8080")
	add := wire.Request{
		Kind:    wire.RequestAddListener,
		Content: wire.RequestContent{Listener: &wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &http}},
	}

	if _, err := s.Apply(add); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := s.Apply(add); err == nil {
		t.Fatal("want error adding a listener on an address that already has one, got nil")
	}
	if len(s.Listeners) != 1 {
		t.Fatalf("want 1 listener after rejected duplicate, got %d", len(s.Listeners))
	}
}

func TestApplyRemoveListenerRequiresDeactivation(t *testing.T) {
	s := New()
	http := wire.DefaultHttpListenerConfig("0.0.0.0:8080")
	add := wire.Request{
		Kind:    wire.RequestAddListener,
		Content: wire.RequestContent{Listener: &wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &http}},
	}
	if _, err := s.Apply(add); err != nil {
		t.Fatalf("add: %v", err)
	}

	remove := wire.Request{Kind: wire.RequestRemoveListener, Content: wire.RequestContent{Address: "0.0.0.0:8080"}}
	if _, err := s.Apply(remove); err == nil {
		t.Fatal("want error removing an active listener, got nil")
	}
	if _, ok := s.Listeners["0.0.0.0:8080"]; !ok {
		t.Fatal("listener should still be present after rejected removal")
	}

	deactivate := wire.Request{Kind: wire.RequestDeactivateListener, Content: wire.RequestContent{Address: "0.0.0.0:8080"}}
	if _, err := s.Apply(deactivate); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.Apply(remove); err != nil {
		t.Fatalf("remove after deactivation: %v", err)
	}
	if _, ok := s.Listeners["0.0.0.0:8080"]; ok {
		t.Fatal("listener should be gone after deactivate-then-remove")
	}
}

func TestApplyBackendUnknownClusterWarns(t *testing.T) {
	s := New()
	backend := wire.Backend{ClusterID: "ghost", BackendID: "b1", Address: "10.0.0.1:8080"}
	diff, err := s.Apply(wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(diff.Warnings) != 1 {
		t.Fatalf("want 1 warning for forward reference, got %d: %v", len(diff.Warnings), diff.Warnings)
	}
	if _, ok := s.Backends["ghost"]["b1"]; !ok {
		t.Fatal("backend should still be applied despite the warning")
	}
}

func TestRemoveClusterCascadesFrontendsAndBackends(t *testing.T) {
	s := New()
	addCluster(t, s, "web")

	front := wire.HttpFrontend{Route: wire.ClusterRoute("web"), Address: "0.0.0.0:80", Hostname: "example.com", Path: wire.PrefixRule("/")}
	if _, err := s.Apply(wire.Request{Kind: wire.RequestAddHttpFrontend, Content: wire.RequestContent{HttpFrontend: &front}}); err != nil {
		t.Fatalf("add frontend: %v", err)
	}
	backend := wire.Backend{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:8080"}
	if _, err := s.Apply(wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}}); err != nil {
		t.Fatalf("add backend: %v", err)
	}

	if _, err := s.Apply(wire.Request{Kind: wire.RequestRemoveCluster, Content: wire.RequestContent{ClusterID: "web"}}); err != nil {
		t.Fatalf("remove cluster: %v", err)
	}

	if len(s.HttpFrontends) != 0 {
		t.Errorf("want 0 http frontends after cluster removal, got %d", len(s.HttpFrontends))
	}
	if _, ok := s.Backends["web"]; ok {
		t.Error("want backends map for removed cluster to be gone")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New()
	addCluster(t, s, "web")
	backend := wire.Backend{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:8080"}
	if _, err := s.Apply(wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}}); err != nil {
		t.Fatalf("add backend: %v", err)
	}

	data, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored, err := Restore(data)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored.Clusters) != 1 || len(restored.Backends["web"]) != 1 {
		t.Fatalf("restored state mismatch: %+v", restored)
	}
}

func TestDiffAgainstOrdersListenersBeforeClustersBeforeFrontendsBeforeBackends(t *testing.T) {
	empty := New()

	target := New()
	addCluster(t, target, "web")
	http := wire.DefaultHttpListenerConfig("0.0.0.0:80")
	if _, err := target.Apply(wire.Request{
		Kind: wire.RequestAddListener,
		Content: wire.RequestContent{
			Listener: &wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &http},
		},
	}); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	backend := wire.Backend{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:8080"}
	if _, err := target.Apply(wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}}); err != nil {
		t.Fatalf("add backend: %v", err)
	}

	cmds := target.DiffAgainst(empty)
	if len(cmds) != 3 {
		t.Fatalf("want 3 commands, got %d: %+v", len(cmds), cmds)
	}
	if cmds[0].Kind != wire.RequestAddListener {
		t.Errorf("want listener first, got %s", cmds[0].Kind)
	}
	if cmds[1].Kind != wire.RequestAddCluster {
		t.Errorf("want cluster second, got %s", cmds[1].Kind)
	}
	if cmds[2].Kind != wire.RequestAddBackend {
		t.Errorf("want backend third, got %s", cmds[2].Kind)
	}
}

func TestClusterHashChangesWithBackends(t *testing.T) {
	s := New()
	addCluster(t, s, "web")

	h1, ok := s.ClusterHash("web")
	if !ok {
		t.Fatal("expected cluster to be found")
	}

	backend := wire.Backend{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:8080"}
	if _, err := s.Apply(wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{Backend: &backend}}); err != nil {
		t.Fatalf("add backend: %v", err)
	}

	h2, ok := s.ClusterHash("web")
	if !ok {
		t.Fatal("expected cluster to still be found")
	}
	if h1 == h2 {
		t.Error("want hash to change after adding a backend")
	}
}
