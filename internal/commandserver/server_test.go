package commandserver

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
)

func startTestServer(t *testing.T) (*Server, *configstate.ConfigState) {
	t.Helper()

	state := configstate.New()
	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, state)
	socketPath := filepath.Join(t.TempDir(), "command.sock")

	server := NewServer(Config{SocketPath: socketPath}, state, pool, nil)
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

	return server, state
}

func dialClient(t *testing.T, server *Server) *channelcodec.Codec {
	t.Helper()
	conn, err := net.Dial("unix", server.Addr())
	if err != nil {
		t.Fatalf("dial command socket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return channelcodec.New(conn, channelcodec.Config{})
}

func TestListListenersReturnsDeclaredListeners(t *testing.T) {
	server, state := startTestServer(t)

	addr := "127.0.0.1:8080"
	if _, err := state.Apply(wire.Request{
		Kind: wire.RequestAddListener,
		Content: wire.RequestContent{
			Listener: &wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &wire.HttpListenerConfig{Address: addr}},
		},
	}); err != nil {
		t.Fatalf("seed listener: %v", err)
	}

	codec := dialClient(t, server)
	if err := codec.Send(wire.Request{ID: "r1", Version: 1, Kind: wire.RequestListListeners}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var resp wire.Response
	if err := codec.RecvInto(&resp); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp.Status != wire.ResponseOk {
		t.Fatalf("want OK, got %s: %s", resp.Status, resp.Message)
	}
	if resp.Content == nil || resp.Content.ListenersList == nil {
		t.Fatal("want a listeners list in the response content")
	}
	if _, ok := resp.Content.ListenersList.HttpListeners[addr]; !ok {
		t.Errorf("want %s in http listeners, got %+v", addr, resp.Content.ListenersList.HttpListeners)
	}
}

func TestInvalidRequestIsRejectedBeforeDispatch(t *testing.T) {
	server, _ := startTestServer(t)
	codec := dialClient(t, server)

	if err := codec.Send(wire.Request{ID: "", Version: 1, Kind: wire.RequestStatus}); err != nil {
		t.Fatalf("send: %v", err)
	}

	var resp wire.Response
	if err := codec.RecvInto(&resp); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp.Status != wire.ResponseFailure {
		t.Errorf("want FAILURE for missing id, got %s", resp.Status)
	}
}

// TestDuplicateListenerIsRejected exercises the "Duplicate listener"
// end-to-end scenario: a second AddListener on an address that already has
// one yields Failure with a message containing "already exists", and the
// state is left unchanged.
func TestDuplicateListenerIsRejected(t *testing.T) {
	server, state := startTestServer(t)
	codec := dialClient(t, server)

	addr := "127.0.0.1:8080"
	addReq := func(id string) wire.Request {
		return wire.Request{
			ID: id, Version: 1, Kind: wire.RequestAddListener,
			Content: wire.RequestContent{
				Listener: &wire.ListenerSpec{Kind: wire.ListenerHTTP, HTTP: &wire.HttpListenerConfig{Address: addr}},
			},
		}
	}

	if err := codec.Send(addReq("first")); err != nil {
		t.Fatalf("send first: %v", err)
	}
	var first wire.Response
	if err := codec.RecvInto(&first); err != nil {
		t.Fatalf("recv first: %v", err)
	}
	if first.Status != wire.ResponseOk {
		t.Fatalf("want OK for first add, got %s: %s", first.Status, first.Message)
	}

	if err := codec.Send(addReq("second")); err != nil {
		t.Fatalf("send second: %v", err)
	}
	var second wire.Response
	if err := codec.RecvInto(&second); err != nil {
		t.Fatalf("recv second: %v", err)
	}
	if second.Status != wire.ResponseFailure {
		t.Fatalf("want FAILURE for duplicate add, got %s", second.Status)
	}
	if !strings.Contains(second.Message, "already exists") {
		t.Errorf(`want message containing "already exists", got %q`, second.Message)
	}
	if len(state.Listeners) != 1 {
		t.Errorf("want state unchanged at 1 listener, got %d", len(state.Listeners))
	}
}

func TestAddClusterMutationAppliesAndReturnsOk(t *testing.T) {
	server, state := startTestServer(t)
	codec := dialClient(t, server)

	cluster := wire.Cluster{ClusterID: "web", LoadBalancingPolicy: wire.LoadBalancingRoundRobin}
	req := wire.Request{ID: "r2", Version: 1, Kind: wire.RequestAddCluster, Content: wire.RequestContent{Cluster: &cluster}}
	if err := codec.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}

	var resp wire.Response
	if err := codec.RecvInto(&resp); err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp.Status != wire.ResponseOk {
		t.Fatalf("want OK, got %s: %s", resp.Status, resp.Message)
	}
	if _, ok := state.Clusters["web"]; !ok {
		t.Error("want cluster applied to state")
	}
}
