// Package worker models one supervised proxy worker process: its channel
// to the supervisor, run state, and in-flight request bookkeeping.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/wire"
)

// Session is one running (or restarting) worker process.
type Session struct {
	ID    uint32
	mu    sync.Mutex
	pid   int
	cmd   *exec.Cmd
	codec *channelcodec.Codec

	state        wire.RunState
	lastSeen     time.Time
	restartCount int

	pendingMu sync.Mutex
	pending   map[string]chan wire.ProxyResponse

	events chan wire.Event
	done   chan struct{}
}

// New wraps an already-started process and its control channel.
func New(id uint32, cmd *exec.Cmd, codec *channelcodec.Codec, events chan wire.Event) *Session {
	return &Session{
		ID:       id,
		pid:      cmd.Process.Pid,
		cmd:      cmd,
		codec:    codec,
		state:    wire.RunStateRunning,
		lastSeen: time.Now(),
		pending:  make(map[string]chan wire.ProxyResponse),
		events:   events,
		done:     make(chan struct{}),
	}
}

// AdoptSession wraps a worker process this supervisor did not spawn itself
// (handed over by a predecessor main during an upgrade). Its pid is not a
// child of this process, so Wait cannot rely on wait(2) and instead
// completes when ReadLoop observes the channel closing.
func AdoptSession(id uint32, pid int, codec *channelcodec.Codec, events chan wire.Event) *Session {
	return &Session{
		ID:       id,
		pid:      pid,
		codec:    codec,
		state:    wire.RunStateRunning,
		lastSeen: time.Now(),
		pending:  make(map[string]chan wire.ProxyResponse),
		events:   events,
		done:     make(chan struct{}),
	}
}

// PID returns the OS process id, used for affinity pinning and signaling.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// State returns the session's last known run state.
func (s *Session) State() wire.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState updates the run state, used by the pool's health-probe loop.
func (s *Session) SetState(state wire.RunState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Touch records that the worker was just heard from, resetting the
// not-answering probe window.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// SilentFor reports how long it has been since the worker last responded.
func (s *Session) SilentFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// RestartCount returns how many times this worker slot has been restarted,
// used by the pool's crash-budget policy.
func (s *Session) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartCount
}

// IncrementRestartCount is called by the pool right before respawning.
func (s *Session) IncrementRestartCount() {
	s.mu.Lock()
	s.restartCount++
	s.mu.Unlock()
}

// Send pushes a request to the worker without waiting for a response.
func (s *Session) Send(req wire.Request) error {
	if err := s.codec.Send(req); err != nil {
		return fmt.Errorf("worker %d: send %s: %w", s.ID, req.Kind, err)
	}
	return nil
}

// SendAndWait sends a request and blocks until a terminal (Ok or Error)
// response arrives for it, correlated by request ID, or ctx is done.
func (s *Session) SendAndWait(ctx context.Context, req wire.Request) (wire.ProxyResponse, error) {
	return s.SendAndWaitProgress(ctx, req, nil)
}

// SendAndWaitProgress is SendAndWait with an optional onProgress callback
// invoked for every Processing frame observed before the terminal one. A
// worker may answer a single request id with any number of Processing
// frames before its terminal Ok or Error, so this must keep reading rather
// than return on the first frame - otherwise later frames for the same id
// arrive after ReadLoop's routing table entry for it is gone and are
// dropped.
func (s *Session) SendAndWaitProgress(ctx context.Context, req wire.Request, onProgress func(wire.ProxyResponse)) (wire.ProxyResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ch := make(chan wire.ProxyResponse, 8)
	s.pendingMu.Lock()
	s.pending[req.ID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, req.ID)
		s.pendingMu.Unlock()
	}()

	if err := s.Send(req); err != nil {
		return wire.ProxyResponse{}, err
	}

	for {
		select {
		case resp := <-ch:
			if resp.Status == wire.ProxyResponseProcessing {
				if onProgress != nil {
					onProgress(resp)
				}
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return wire.ProxyResponse{}, fmt.Errorf("worker %d: %w waiting for response to %s", s.ID, ctx.Err(), req.ID)
		}
	}
}

// ReadLoop continuously decodes responses from the worker's channel,
// routing them to whichever SendAndWait call is waiting on that id, or to
// the events channel for unsolicited ProxyEventKind notifications. It
// returns when the channel closes (worker exited) or hits a decode error.
func (s *Session) ReadLoop() error {
	for {
		var resp wire.ProxyResponse
		if err := s.codec.RecvInto(&resp); err != nil {
			s.SetState(wire.RunStateStopped)
			close(s.done)
			return fmt.Errorf("worker %d: read loop: %w", s.ID, err)
		}
		s.Touch()

		if resp.Content != nil && resp.Content.Kind == wire.ProxyContentEvent && resp.Content.Event != nil {
			select {
			case s.events <- *resp.Content.Event:
			default:
			}
			continue
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[resp.ID]
		s.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// Close terminates the worker's channel. It does not kill the process;
// callers that want a hard stop should signal the process directly.
func (s *Session) Close() error {
	return s.codec.Close()
}

// Wait blocks until the underlying process exits and returns its error,
// used by the pool's restart-supervision loop to detect unexpected deaths.
// For an adopted session (no direct child relationship to this process) it
// blocks on the channel closing instead, since wait(2) only works on a real
// child pid.
func (s *Session) Wait() error {
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	<-s.done
	return nil
}

// Signal delivers an OS signal to the worker process, used for a hard
// SIGKILL once the soft-stop grace timer expires. Works for adopted
// sessions too: sending a signal only needs the pid, not a parent-child
// relationship.
func (s *Session) Signal(sig os.Signal) error {
	if s.cmd != nil {
		return s.cmd.Process.Signal(sig)
	}
	proc, err := os.FindProcess(s.pid)
	if err != nil {
		return fmt.Errorf("worker %d: find process %d: %w", s.ID, s.pid, err)
	}
	return proc.Signal(sig)
}

// ChannelFile duplicates the fd backing this session's channel, for handing
// it to a successor supervisor process during an upgrade. The caller and
// this Session end up with independent fds referencing the same socket.
func (s *Session) ChannelFile() (*os.File, error) {
	return s.codec.File()
}
