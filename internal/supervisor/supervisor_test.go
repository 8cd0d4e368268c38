package supervisor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/driftcache"
	"github.com/sozu-io/sozu/internal/snapshotstore"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
	"github.com/sozu-io/sozu/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Command.SocketPath = filepath.Join(dir, "sozu.sock")
	cfg.Snapshot.Path = filepath.Join(dir, "snapshot.json")
	cfg.Snapshot.DriftCachePath = filepath.Join(dir, "driftcache")
	cfg.Worker.Count = 0
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNewBuildsEveryComponent(t *testing.T) {
	sup, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.drift.Close()

	if sup.state == nil {
		t.Error("expected state to be initialized")
	}
	if sup.pool == nil {
		t.Error("expected pool to be initialized")
	}
	if sup.server == nil {
		t.Error("expected server to be initialized")
	}
	if sup.store == nil {
		t.Error("expected snapshot store to be initialized")
	}
	if sup.drift == nil {
		t.Error("expected drift cache to be initialized")
	}
	if sup.metrics == nil {
		t.Error("expected metrics registry to be initialized")
	}
	if sup.upgrader == nil {
		t.Error("expected upgrader to be initialized")
	}
	if sup.metricsSrv != nil {
		t.Error("expected no metrics server when Metrics.Enabled is false")
	}
}

func TestNewStartsMetricsServerWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = "127.0.0.1:0"

	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sup.drift.Close()

	if sup.metricsSrv == nil {
		t.Error("expected metrics server to be initialized")
	}
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()

	state := configstate.New()
	drift, err := driftcache.Open(filepath.Join(dir, "driftcache"))
	if err != nil {
		t.Fatalf("open drift cache: %v", err)
	}
	t.Cleanup(func() { drift.Close() })

	store := snapshotstore.New(filepath.Join(dir, "snapshot.json"), nil)
	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, state)

	return &Supervisor{
		cfg:   testConfig(t),
		state: state,
		pool:  pool,
		store: store,
		drift: drift,
	}
}

func TestSaveSnapshotPersistsCurrentState(t *testing.T) {
	sup := newTestSupervisor(t)

	if _, err := sup.state.Apply(wire.Request{
		Kind:    wire.RequestAddCluster,
		Content: wire.RequestContent{Cluster: &wire.Cluster{ClusterID: "web", LoadBalancingPolicy: wire.LoadBalancingRoundRobin}},
	}); err != nil {
		t.Fatalf("apply add cluster: %v", err)
	}

	sup.saveSnapshot(context.Background())

	data, err := sup.store.Load(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	restored, err := configstate.Restore(data)
	if err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}
	if ids := restored.ClusterIDs(); len(ids) != 1 || ids[0] != "web" {
		t.Errorf("expected restored state to contain cluster web, got %v", ids)
	}
}

func TestOnMutateRecordsDriftForAckedWorkersOnly(t *testing.T) {
	sup := newTestSupervisor(t)

	cmd := wire.Request{
		Kind:    wire.RequestAddCluster,
		Content: wire.RequestContent{ClusterID: "web", Cluster: &wire.Cluster{ClusterID: "web", LoadBalancingPolicy: wire.LoadBalancingRoundRobin}},
	}
	if _, err := sup.state.Apply(cmd); err != nil {
		t.Fatalf("apply add cluster: %v", err)
	}

	wantHash, ok := sup.state.ClusterHash("web")
	if !ok {
		t.Fatal("expected cluster hash to exist after apply")
	}

	sup.onMutate(cmd, configstate.Diff{}, []uint32{1, 2})

	for _, id := range []uint32{1, 2} {
		hash, ok, err := sup.drift.LastAcked(context.Background(), "web", id)
		if err != nil {
			t.Fatalf("last acked for worker %d: %v", id, err)
		}
		if !ok {
			t.Errorf("expected drift entry for worker %d", id)
		}
		if hash != wantHash {
			t.Errorf("worker %d: got hash %d, want %d", id, hash, wantHash)
		}
	}

	if _, ok, _ := sup.drift.LastAcked(context.Background(), "web", 3); ok {
		t.Error("expected no drift entry for a worker that did not acknowledge the mutation")
	}
}

func TestOnMutateIgnoresRequestsWithoutClusterID(t *testing.T) {
	sup := newTestSupervisor(t)

	sup.onMutate(wire.Request{Kind: wire.RequestAddListener}, configstate.Diff{}, []uint32{1})

	if _, ok, _ := sup.drift.LastAcked(context.Background(), "", 1); ok {
		t.Error("expected no drift entry to be recorded for a clusterless request")
	}
}
