// Package workerpool spawns, supervises and fans commands out to proxy
// worker processes. It owns the only writer to each worker's channel and
// is the sole place that forks a child process.
package workerpool

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/metrics"
	"github.com/sozu-io/sozu/internal/platform"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/worker"
)

// unixConnFromFD wraps a raw socketpair fd as a *net.UnixConn so it can be
// used with channelcodec (and, for listener handoff, SendFDs/RecvFDs).
func unixConnFromFD(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	conn, err := net.FileConn(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("workerpool: fd %d did not wrap to a unix conn", fd)
	}
	return unixConn, nil
}

// CrashBudget caps how many times a worker slot may restart within Window
// before the pool stops auto-restarting it and waits for an operator
// LaunchWorker command.
type CrashBudget struct {
	MaxCrashes int
	Window     time.Duration
}

// DefaultCrashBudget matches the original's "5 crashes in a minute" cutoff.
func DefaultCrashBudget() CrashBudget {
	return CrashBudget{MaxCrashes: 5, Window: time.Minute}
}

// Config parameterizes how the pool spawns and talks to workers.
type Config struct {
	Executable            string
	CommandBufferSize     int
	MaxCommandBufferSize  int
	CommandTimeout        time.Duration
	ProbeTimeout          time.Duration
	SoftStopTimeout       time.Duration
	CrashBudget           CrashBudget
}

func (c *Config) withDefaults() {
	if c.CommandBufferSize == 0 {
		c.CommandBufferSize = 1024
	}
	if c.MaxCommandBufferSize == 0 {
		c.MaxCommandBufferSize = c.CommandBufferSize * 2
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = time.Minute
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.SoftStopTimeout == 0 {
		c.SoftStopTimeout = 10 * time.Second
	}
	if (c.CrashBudget == CrashBudget{}) {
		c.CrashBudget = DefaultCrashBudget()
	}
}

type crashRecord struct {
	mu        sync.Mutex
	times     []time.Time
	paused    bool
}

// Pool owns every running worker and the authoritative ConfigState each
// mutation is applied to before being fanned out.
type Pool struct {
	cfg   Config
	state *configstate.ConfigState

	mu      sync.RWMutex
	workers map[uint32]*worker.Session
	nextID  uint32

	crashes map[uint32]*crashRecord
	events  chan wire.Event

	metrics *metrics.Registry
}

// New returns a Pool bound to state, which it mutates on every
// FanOutMutation.
func New(cfg Config, state *configstate.ConfigState) *Pool {
	cfg.withDefaults()
	return &Pool{
		cfg:     cfg,
		state:   state,
		workers: make(map[uint32]*worker.Session),
		crashes: make(map[uint32]*crashRecord),
		events:  make(chan wire.Event, 256),
	}
}

// SetMetrics wires a metrics registry into the pool. A nil registry (the
// zero value) is fine - every Registry method is a no-op on a nil receiver.
func (p *Pool) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

// SetState rebinds the pool to state, used once by a freshly re-exec'd
// successor supervisor after internal/upgrader.AdoptFromMain has restored
// the predecessor's ConfigState - the pool has to exist beforehand so
// AdoptFromMain can register adopted worker channels into it.
func (p *Pool) SetState(state *configstate.ConfigState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Events returns the channel unsolicited worker events are published on.
func (p *Pool) Events() <-chan wire.Event { return p.events }

// UpdateGauges recomputes the workers_running/workers_not_answering gauges
// from the current worker states. Intended to be called on the same cadence
// as Probe.
func (p *Pool) UpdateGauges() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var running, notAnswering int
	for _, w := range p.workers {
		switch w.State() {
		case wire.RunStateRunning:
			running++
		case wire.RunStateNotAnswering:
			notAnswering++
		}
	}
	p.metrics.SetWorkersRunning(running)
	p.metrics.SetWorkersNotAnswering(notAnswering)
}

// Workers returns a point-in-time snapshot of worker info for status
// queries.
func (p *Pool) Workers() []wire.WorkerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]wire.WorkerInfo, 0, len(p.workers))
	for id, w := range p.workers {
		out = append(out, wire.WorkerInfo{ID: id, PID: w.PID(), RunState: w.State()})
	}
	return out
}

// Sessions returns a point-in-time snapshot of the live worker sessions
// keyed by id, for the upgrader to re-parent their channels to a successor.
func (p *Pool) Sessions() map[uint32]*worker.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[uint32]*worker.Session, len(p.workers))
	for id, w := range p.workers {
		out[id] = w
	}
	return out
}

// AdoptChannel registers a worker this pool did not spawn itself - used by
// a freshly upgraded successor supervisor to take ownership of a channel
// handed over by the old main process.
func (p *Pool) AdoptChannel(id uint32, pid int, codec *channelcodec.Codec) {
	session := worker.AdoptSession(id, pid, codec, p.events)

	p.mu.Lock()
	p.workers[id] = session
	if id >= p.nextID {
		p.nextID = id + 1
	}
	p.mu.Unlock()
	go session.ReadLoop()
}

// Spawn forks a new worker process and waits for its channel to come up.
// It re-execs the current binary with the internal "worker" sub-command,
// handing it one end of a freshly created socketpair as its command
// channel (fd 3 via ExtraFiles) and a snapshot of the current ConfigState
// on a pipe (fd 4).
func (p *Pool) Spawn(ctx context.Context, id uint32) (*worker.Session, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("workerpool: socketpair: %w", err)
	}
	parentFD, childFD := fds[0], fds[1]

	snapshot, err := p.state.Snapshot()
	if err != nil {
		unix.Close(parentFD)
		unix.Close(childFD)
		return nil, fmt.Errorf("workerpool: snapshot config state: %w", err)
	}
	snapshotReader, snapshotWriter, err := os.Pipe()
	if err != nil {
		unix.Close(parentFD)
		unix.Close(childFD)
		return nil, fmt.Errorf("workerpool: snapshot pipe: %w", err)
	}

	childConnFile := os.NewFile(uintptr(childFD), fmt.Sprintf("worker-%d-channel", id))
	defer childConnFile.Close()

	args := []string{
		"worker",
		"--fd", "3",
		"--configuration-state-fd", "4",
		"--id", fmt.Sprintf("%d", id),
		"--command-buffer-size", fmt.Sprintf("%d", p.cfg.CommandBufferSize),
		"--max-command-buffer-size", fmt.Sprintf("%d", p.cfg.MaxCommandBufferSize),
	}

	cmd := exec.CommandContext(ctx, p.cfg.Executable, args...)
	cmd.ExtraFiles = []*os.File{childConnFile, snapshotReader}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		unix.Close(parentFD)
		snapshotReader.Close()
		snapshotWriter.Close()
		return nil, fmt.Errorf("workerpool: start worker %d: %w", id, err)
	}

	// The parent's copies of the child-side fd and read end of the pipe are
	// no longer needed once the child has them open across exec.
	childConnFile.Close()
	snapshotReader.Close()

	if _, err := snapshotWriter.Write(snapshot); err != nil {
		logger.Warn("failed writing config snapshot to new worker", "worker_id", id, "error", err)
	}
	snapshotWriter.Close()

	conn, err := unixConnFromFD(parentFD, fmt.Sprintf("worker-%d-parent", id))
	if err != nil {
		return nil, fmt.Errorf("workerpool: wrap parent fd for worker %d: %w", id, err)
	}

	codec := channelcodec.New(conn, channelcodec.Config{Size: p.cfg.CommandBufferSize, MaxSize: p.cfg.MaxCommandBufferSize})
	session := worker.New(id, cmd, codec, p.events)

	p.mu.Lock()
	p.workers[id] = session
	p.mu.Unlock()

	go func() {
		if err := session.ReadLoop(); err != nil {
			logger.Warn("worker channel closed", "worker_id", id, "error", err)
		}
	}()

	if cpu, ok := p.affinityTarget(id); ok {
		if err := platform.SetAffinity(session.PID(), cpu); err != nil {
			logger.Warn("failed to pin worker to cpu", "worker_id", id, "cpu", cpu, "error", err)
		}
	}

	return session, nil
}

// affinityTarget assigns worker id a CPU core in round-robin order,
// reserving core 0 for the supervisor itself, matching the original's
// set_workers_affinity (main process first, then workers in id order).
func (p *Pool) affinityTarget(id uint32) (int, bool) {
	maxCPU := platform.NumCPU()
	if maxCPU <= 0 {
		return 0, false
	}
	if int(id)+1 >= maxCPU {
		logger.Warn("more workers than cpu cores, multiple workers will share a core")
	}
	return int((id + 1)) % maxCPU, true
}

// NextID allocates a new, never-reused worker id.
func (p *Pool) NextID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return p.nextID
}
