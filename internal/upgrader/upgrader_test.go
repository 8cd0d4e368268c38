package upgrader

import (
	"context"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
)

// handoffPair returns a codec for the "old main" side of a handoff channel
// and the raw fd that a freshly re-exec'd "successor" would have inherited
// in place of exec.Cmd.ExtraFiles, without actually spawning a process.
func handoffPair(t *testing.T) (*channelcodec.Codec, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	parentFile := os.NewFile(uintptr(fds[0]), "test-handoff-parent")
	parentConn, err := unixConnFromFile(parentFile)
	if err != nil {
		t.Fatalf("wrap parent fd: %v", err)
	}
	t.Cleanup(func() { _ = parentConn.Close() })

	return channelcodec.New(parentConn, channelcodec.Config{}), fds[1]
}

func TestAdoptFromMainRestoresSnapshot(t *testing.T) {
	source := configstate.New()
	if _, err := source.Apply(wire.Request{
		Kind:    wire.RequestAddCluster,
		Content: wire.RequestContent{Cluster: &wire.Cluster{ClusterID: "web", LoadBalancingPolicy: wire.LoadBalancingRoundRobin}},
	}); err != nil {
		t.Fatalf("seed cluster: %v", err)
	}
	snapshot, err := source.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	parentCodec, childFD := handoffPair(t)
	go func() {
		_ = parentCodec.Send(handoffMessage{Snapshot: snapshot})
	}()

	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, configstate.New())
	var seenListeners int
	state, err := AdoptFromMain(childFD, pool, func(address string, kind wire.ListenerKind, fd int) {
		seenListeners++
	})
	if err != nil {
		t.Fatalf("AdoptFromMain: %v", err)
	}
	if seenListeners != 0 {
		t.Errorf("want no listeners in an empty handoff, got %d", seenListeners)
	}
	if _, ok := state.Clusters["web"]; !ok {
		t.Error("want restored state to carry the seeded cluster")
	}

	var ack handoffAck
	if err := parentCodec.RecvInto(&ack); err != nil {
		t.Fatalf("recv ack: %v", err)
	}
	if !ack.Ready {
		t.Errorf("want Ready ack, got %+v", ack)
	}
}

func TestAdoptFromMainReportsRestoreFailure(t *testing.T) {
	parentCodec, childFD := handoffPair(t)
	go func() {
		_ = parentCodec.Send(handoffMessage{Snapshot: []byte("not json")})
	}()

	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, configstate.New())
	_, err := AdoptFromMain(childFD, pool, func(string, wire.ListenerKind, int) {})
	if err == nil {
		t.Fatal("want an error for a malformed snapshot")
	}

	var ack handoffAck
	if err := parentCodec.RecvInto(&ack); err != nil {
		t.Fatalf("recv ack: %v", err)
	}
	if ack.Ready {
		t.Error("want Ready=false ack after a restore failure")
	}
	if ack.Error == "" {
		t.Error("want a non-empty error message in the ack")
	}
}

func TestConfigWithDefaultsSetsHandoffTimeout(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.HandoffTimeout <= 0 {
		t.Error("want a positive default handoff timeout")
	}
}

func TestUpgradeWorkersNoOpOnEmptyPool(t *testing.T) {
	pool := workerpool.New(workerpool.Config{Executable: "/bin/true"}, configstate.New())
	u := New(Config{Executable: "/bin/true"}, configstate.New(), pool, func() []ListenerHandle { return nil })

	if err := u.UpgradeWorkers(context.Background()); err != nil {
		t.Fatalf("UpgradeWorkers on an empty pool: %v", err)
	}
}
