// Package commandserver owns the control-stream UNIX socket: it accepts
// client connections, validates and dispatches each framed Request, and
// streams framed Responses back until the client disconnects.
package commandserver

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/metrics"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
)

// MutationObserver is notified after a mutation has been applied to
// ConfigState and fanned out to every worker, naming the workers that
// acknowledged it successfully. Used by the supervisor to record drift-cache
// entries without commandserver depending on that package directly.
type MutationObserver func(cmd wire.Request, diff configstate.Diff, ackedWorkers []uint32)

// Upgrader performs the supervisor self-upgrade and per-worker upgrade
// procedures. Defined here rather than depending on internal/upgrader's
// concrete type, so dispatch can be unit tested against a stub.
type Upgrader interface {
	UpgradeMain(ctx context.Context) error
	UpgradeWorkers(ctx context.Context) error
}

// Config configures the control socket listener.
type Config struct {
	// SocketPath is the UNIX socket path clients connect to.
	SocketPath string
	// CodecConfig bounds the frame sizes for every accepted connection.
	CodecConfig channelcodec.Config
}

// Server accepts control-socket clients and dispatches their requests.
type Server struct {
	cfg      Config
	state    *configstate.ConfigState
	pool     *workerpool.Pool
	upgrader Upgrader
	validate *validator.Validate
	metrics  *metrics.Registry
	onMutate MutationObserver

	listener     net.Listener
	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	subsMu sync.Mutex
	subs   map[chan wire.Event]struct{}
}

// NewServer builds a Server. upgrader may be nil if upgrade requests should
// be rejected (e.g. in a supervisor built without upgrade support wired up
// yet).
func NewServer(cfg Config, state *configstate.ConfigState, pool *workerpool.Pool, upgrader Upgrader) *Server {
	return &Server{
		cfg:      cfg,
		state:    state,
		pool:     pool,
		upgrader: upgrader,
		validate: validator.New(),
		shutdown: make(chan struct{}),
		subs:     make(map[chan wire.Event]struct{}),
	}
}

// Serve listens on the control socket and blocks accepting connections
// until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.cfg.SocketPath)
	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("commandserver: listen %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = listener

	logger.Info("command server listening", "socket", s.cfg.SocketPath)

	s.wg.Add(1)
	go s.relayEvents()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("commandserver: accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// relayEvents fans every WorkerPool event out to active SubscribeEvents
// connections, dropping it for any subscriber whose buffer is full rather
// than blocking the pool.
func (s *Server) relayEvents() {
	defer s.wg.Done()
	for {
		select {
		case ev, ok := <-s.pool.Events():
			if !ok {
				return
			}
			s.subsMu.Lock()
			for ch := range s.subs {
				select {
				case ch <- ev:
				default:
				}
			}
			s.subsMu.Unlock()
		case <-s.shutdown:
			return
		}
	}
}

func (s *Server) subscribe() chan wire.Event {
	ch := make(chan wire.Event, 32)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan wire.Event) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	s.subsMu.Unlock()
	close(ch)
}

// Stop closes the listener, causing Serve's accept loop to return.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Addr returns the socket path (for tests).
func (s *Server) Addr() string {
	return s.cfg.SocketPath
}

// SetMetrics wires a metrics registry into the server. A nil registry is
// fine - every Registry method is a no-op on a nil receiver.
func (s *Server) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// SetMutationObserver wires a callback invoked after every successfully
// applied and fanned-out mutation.
func (s *Server) SetMutationObserver(obs MutationObserver) {
	s.onMutate = obs
}
