// Package upgrader performs zero-downtime in-place upgrades of the running
// supervisor binary: re-exec a successor, hand it the ConfigState, every
// active listener socket and every worker's control channel over inherited
// file descriptors, then exit once the successor confirms it has everything.
package upgrader

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
)

// ListenerHandle is one bound, active listener socket the successor must
// inherit without ever closing (so in-flight connections on it survive the
// handover).
type ListenerHandle struct {
	Address string
	Kind    wire.ListenerKind
	File    *os.File
}

// Config parameterizes the re-exec.
type Config struct {
	// Executable is the path to the current binary, re-exec'd unchanged.
	Executable string
	// HandoffTimeout bounds how long the old process waits for the
	// successor to acknowledge it has restored state and adopted every
	// listener and worker.
	HandoffTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HandoffTimeout == 0 {
		c.HandoffTimeout = 30 * time.Second
	}
	return c
}

// Upgrader drives both whole-supervisor and per-worker upgrades.
type Upgrader struct {
	cfg       Config
	state     *configstate.ConfigState
	pool      *workerpool.Pool
	listeners func() []ListenerHandle
}

// New builds an Upgrader. listeners is called fresh on every UpgradeMain to
// get the current set of bound listener sockets; it is supplied by whatever
// owns listener lifecycle (the supervisor), keeping this package decoupled
// from socket creation.
func New(cfg Config, state *configstate.ConfigState, pool *workerpool.Pool, listeners func() []ListenerHandle) *Upgrader {
	return &Upgrader{cfg: cfg.withDefaults(), state: state, pool: pool, listeners: listeners}
}

// handoffMessage is the supervisor-to-successor-supervisor protocol sent
// over the dedicated upgrade channel. It is deliberately not a wire.Request:
// nothing on the client-facing control socket ever sees it.
type handoffMessage struct {
	Snapshot  []byte           `json:"snapshot"`
	Listeners []listenerMeta   `json:"listeners"`
	Workers   []workerMeta     `json:"workers"`
}

type listenerMeta struct {
	Address string          `json:"address"`
	Kind    wire.ListenerKind `json:"kind"`
	FD      int             `json:"fd"`
}

type workerMeta struct {
	ID  uint32 `json:"id"`
	PID int    `json:"pid"`
	FD  int    `json:"fd"`
}

type handoffAck struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// unixConnFromFile wraps f as a net.Conn usable by channelcodec. f is
// closed afterward; the wrapping net.FileConn call dup's the descriptor.
func unixConnFromFile(f *os.File) (net.Conn, error) {
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UpgradeMain re-execs the current binary as a successor supervisor,
// transfers ConfigState, every active listener and every worker's channel
// to it, and returns once the successor has confirmed readiness. The caller
// is expected to exit the process after UpgradeMain returns nil.
func (u *Upgrader) UpgradeMain(ctx context.Context) error {
	snapshot, err := u.state.Snapshot()
	if err != nil {
		return fmt.Errorf("upgrader: snapshot state: %w", err)
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("upgrader: socketpair: %w", err)
	}
	parentFD, childFD := fds[0], fds[1]

	childConn := os.NewFile(uintptr(childFD), "upgrade-handoff")
	defer childConn.Close()

	extraFiles := []*os.File{childConn}
	var listenerMetas []listenerMeta
	for _, h := range u.listeners() {
		listenerMetas = append(listenerMetas, listenerMeta{Address: h.Address, Kind: h.Kind, FD: 3 + len(extraFiles)})
		extraFiles = append(extraFiles, h.File)
	}

	sessions := u.pool.Sessions()
	var workerMetas []workerMeta
	workerFiles := make([]*os.File, 0, len(sessions))
	for id, session := range sessions {
		file, err := session.ChannelFile()
		if err != nil {
			return fmt.Errorf("upgrader: duplicate channel for worker %d: %w", id, err)
		}
		workerFiles = append(workerFiles, file)
		workerMetas = append(workerMetas, workerMeta{ID: id, PID: session.PID(), FD: 3 + len(extraFiles)})
		extraFiles = append(extraFiles, file)
	}
	defer func() {
		for _, f := range workerFiles {
			_ = f.Close()
		}
		for _, h := range u.listeners() {
			_ = h.File.Close()
		}
	}()

	cmd := exec.CommandContext(ctx, u.cfg.Executable, "main", "--fd", "3")
	cmd.ExtraFiles = extraFiles
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("upgrader: start successor: %w", err)
	}

	parentConn := os.NewFile(uintptr(parentFD), "upgrade-handoff")
	netConn, err := unixConnFromFile(parentConn)
	if err != nil {
		return fmt.Errorf("upgrader: wrap handoff channel: %w", err)
	}
	codec := channelcodec.New(netConn, channelcodec.Config{})
	defer codec.Close()

	if err := codec.Send(handoffMessage{Snapshot: snapshot, Listeners: listenerMetas, Workers: workerMetas}); err != nil {
		return fmt.Errorf("upgrader: send handoff: %w", err)
	}

	ackCh := make(chan handoffAck, 1)
	errCh := make(chan error, 1)
	go func() {
		var ack handoffAck
		if err := codec.RecvInto(&ack); err != nil {
			errCh <- err
			return
		}
		ackCh <- ack
	}()

	select {
	case ack := <-ackCh:
		if !ack.Ready {
			return fmt.Errorf("upgrader: successor reported not ready: %s", ack.Error)
		}
	case err := <-errCh:
		return fmt.Errorf("upgrader: wait for successor ack: %w", err)
	case <-time.After(u.cfg.HandoffTimeout):
		return fmt.Errorf("upgrader: successor did not acknowledge within %s", u.cfg.HandoffTimeout)
	}

	logger.Info("upgrade handoff complete, exiting old main", "pid", os.Getpid(), "successor_pid", cmd.Process.Pid)
	return nil
}

// UpgradeWorkers performs a rolling restart of every worker: each gets a
// freshly spawned replacement that inherits the current ConfigState (same
// snapshot-over-a-pipe path Spawn already uses for a brand new worker, so
// there is no separate listener-FD handoff to a worker - every worker rebuilds
// its own listener sockets from the snapshot it receives), then the old
// worker is told to stop gracefully once the replacement is confirmed
// running. Workers are replaced one at a time so a failure mid-rollout never
// leaves the pool with zero capacity for a given worker slot.
func (u *Upgrader) UpgradeWorkers(ctx context.Context) error {
	sessions := u.pool.Sessions()

	for id, old := range sessions {
		newID := u.pool.NextID()
		if _, err := u.pool.Spawn(ctx, newID); err != nil {
			return fmt.Errorf("upgrader: spawn replacement for worker %d: %w", id, err)
		}
		go u.pool.Supervise(context.Background(), newID)

		if err := u.pool.Reconcile(ctx, newID); err != nil {
			logger.Warn("upgrade workers: reconcile failed for replacement", "worker_id", newID, "error", err)
		}

		if err := u.pool.Stop(ctx, id); err != nil {
			logger.Warn("upgrade workers: failed to stop old worker", "worker_id", id, "error", err)
		}

		logger.Info("worker upgraded", "old_worker_id", id, "old_pid", old.PID(), "new_worker_id", newID)
	}

	return nil
}

// AdoptFromMain is called by a freshly re-exec'd successor process on fd 3:
// it reads the handoff message, restores ConfigState, adopts every worker
// channel into pool, and sends an ack. onListener is invoked with each
// restored listener so the caller can rebuild its net.Listener from the fd.
func AdoptFromMain(fd int, pool *workerpool.Pool, onListener func(address string, kind wire.ListenerKind, fd int)) (*configstate.ConfigState, error) {
	file := os.NewFile(uintptr(fd), "upgrade-handoff")
	conn, err := unixConnFromFile(file)
	if err != nil {
		return nil, fmt.Errorf("upgrader: wrap handoff channel: %w", err)
	}
	codec := channelcodec.New(conn, channelcodec.Config{})
	defer codec.Close()

	var handoff handoffMessage
	if err := codec.RecvInto(&handoff); err != nil {
		return nil, fmt.Errorf("upgrader: read handoff: %w", err)
	}

	state, err := configstate.Restore(handoff.Snapshot)
	if err != nil {
		_ = codec.Send(handoffAck{Ready: false, Error: err.Error()})
		return nil, fmt.Errorf("upgrader: restore state: %w", err)
	}

	for _, l := range handoff.Listeners {
		onListener(l.Address, l.Kind, l.FD)
	}

	for _, wm := range handoff.Workers {
		wf := os.NewFile(uintptr(wm.FD), fmt.Sprintf("worker-%d-channel", wm.ID))
		wconn, err := unixConnFromFile(wf)
		if err != nil {
			_ = codec.Send(handoffAck{Ready: false, Error: err.Error()})
			return nil, fmt.Errorf("upgrader: wrap worker %d channel: %w", wm.ID, err)
		}
		wcodec := channelcodec.New(wconn, channelcodec.Config{})
		pool.AdoptChannel(wm.ID, wm.PID, wcodec)
	}

	if err := codec.Send(handoffAck{Ready: true}); err != nil {
		return nil, fmt.Errorf("upgrader: send ack: %w", err)
	}
	return state, nil
}
