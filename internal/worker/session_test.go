package worker

import (
	"context"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/wire"
)

// newTestSession wires a Session to an in-memory pipe and returns the peer
// codec standing in for the worker process's end of the channel.
func newTestSession(t *testing.T) (*Session, *channelcodec.Codec) {
	t.Helper()

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start stand-in process: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	supervisorConn, workerConn := net.Pipe()
	t.Cleanup(func() { _ = supervisorConn.Close(); _ = workerConn.Close() })

	events := make(chan wire.Event, 8)
	session := New(1, cmd, channelcodec.New(supervisorConn, channelcodec.Config{}), events)
	peer := channelcodec.New(workerConn, channelcodec.Config{})
	return session, peer
}

func TestSendAndWaitCorrelatesResponseByID(t *testing.T) {
	session, peer := newTestSession(t)
	go session.ReadLoop()

	go func() {
		var req wire.Request
		if err := peer.RecvInto(&req); err != nil {
			return
		}
		_ = peer.Send(wire.OkProxyResponse(req.ID, nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := session.SendAndWait(ctx, wire.Request{Kind: wire.RequestStatus})
	if err != nil {
		t.Fatalf("send and wait: %v", err)
	}
	if resp.Status != wire.ProxyResponseOk {
		t.Errorf("want OK status, got %s", resp.Status)
	}
}

func TestSendAndWaitProgressForwardsProcessingFramesBeforeTerminal(t *testing.T) {
	session, peer := newTestSession(t)
	go session.ReadLoop()

	go func() {
		var req wire.Request
		if err := peer.RecvInto(&req); err != nil {
			return
		}
		_ = peer.Send(wire.ProcessingProxyResponse(req.ID))
		_ = peer.Send(wire.ProcessingProxyResponse(req.ID))
		_ = peer.Send(wire.OkProxyResponse(req.ID, nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var progress int
	resp, err := session.SendAndWaitProgress(ctx, wire.Request{Kind: wire.RequestStatus}, func(wire.ProxyResponse) {
		progress++
	})
	if err != nil {
		t.Fatalf("send and wait: %v", err)
	}
	if progress != 2 {
		t.Errorf("want 2 processing frames forwarded, got %d", progress)
	}
	if resp.Status != wire.ProxyResponseOk {
		t.Errorf("want terminal OK status, got %s", resp.Status)
	}
}

func TestSendAndWaitTimesOutWithoutResponse(t *testing.T) {
	session, _ := newTestSession(t)
	go session.ReadLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := session.SendAndWait(ctx, wire.Request{Kind: wire.RequestStatus}); err == nil {
		t.Fatal("want timeout error, got nil")
	}
}

func TestReadLoopRoutesEventsToEventsChannel(t *testing.T) {
	session, peer := newTestSession(t)
	go session.ReadLoop()

	ev := wire.Event{Kind: wire.EventBackendDown, ClusterID: "web"}
	resp := wire.ProxyResponse{
		ID:     "unsolicited",
		Status: wire.ProxyResponseOk,
		Content: &wire.ProxyResponseContent{
			Kind:  wire.ProxyContentEvent,
			Event: &ev,
		},
	}
	if err := peer.Send(resp); err != nil {
		t.Fatalf("send event: %v", err)
	}

	select {
	case got := <-session.events:
		if got.ClusterID != "web" {
			t.Errorf("want cluster_id web, got %s", got.ClusterID)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestIncrementRestartCountAndTouch(t *testing.T) {
	session, _ := newTestSession(t)

	if session.RestartCount() != 0 {
		t.Fatalf("want 0 initial restarts, got %d", session.RestartCount())
	}
	session.IncrementRestartCount()
	session.IncrementRestartCount()
	if session.RestartCount() != 2 {
		t.Errorf("want 2 restarts, got %d", session.RestartCount())
	}

	before := session.SilentFor()
	session.Touch()
	if session.SilentFor() > before {
		t.Error("want SilentFor to shrink after Touch")
	}
}
