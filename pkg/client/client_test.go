package client

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sozu-io/sozu/internal/commandserver"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	state := configstate.New()
	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, state)
	socketPath := filepath.Join(t.TempDir(), "command.sock")

	server := commandserver.NewServer(commandserver.Config{SocketPath: socketPath}, state, pool, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = server.Serve(ctx)
	}()
	<-ready
	t.Cleanup(server.Stop)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			_ = conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return socketPath
}

func TestDoAddClusterSucceeds(t *testing.T) {
	socketPath := startTestServer(t)

	c, err := Dial(Config{SocketPath: socketPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	result, err := c.Do(context.Background(), AddCluster(wire.Cluster{
		ClusterID:           "web",
		LoadBalancingPolicy: wire.LoadBalancingRoundRobin,
	}))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Final.Status != wire.ResponseOk {
		t.Errorf("expected Ok status, got %s", result.Final.Status)
	}
}

func TestDoReturnsFailureForUnknownCluster(t *testing.T) {
	socketPath := startTestServer(t)

	c, err := Dial(Config{SocketPath: socketPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	result, err := c.Do(context.Background(), RemoveCluster("does-not-exist"))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if result.Final.Status != wire.ResponseFailure {
		t.Fatalf("expected Failure status, got %s", result.Final.Status)
	}
	if result.Err() == nil {
		t.Error("expected Err() to report the failure")
	}
}

func TestDoQueryListenersReturnsEmptyListInitially(t *testing.T) {
	socketPath := startTestServer(t)

	c, err := Dial(Config{SocketPath: socketPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	result, err := c.Do(context.Background(), ListListeners())
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Final.Content == nil || result.Final.Content.ListenersList == nil {
		t.Fatal("expected a listeners list in the response content")
	}
}
