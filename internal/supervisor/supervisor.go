// Package supervisor wires every other internal package into one running
// process: it loads or bootstraps ConfigState, spawns the initial worker
// pool, starts the control socket and the metrics endpoint, and drives the
// background probe loop and graceful shutdown. It owns no protocol logic of
// its own - that lives in commandserver, workerpool and configstate - only
// construction order and lifecycle.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/commandserver"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/driftcache"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/metrics"
	"github.com/sozu-io/sozu/internal/snapshotstore"
	"github.com/sozu-io/sozu/internal/upgrader"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
	"github.com/sozu-io/sozu/pkg/config"
)

// Supervisor is the top-level running process: one ConfigState, one worker
// pool, one control socket, one snapshot store.
type Supervisor struct {
	cfg *config.Config

	state      *configstate.ConfigState
	pool       *workerpool.Pool
	server     *commandserver.Server
	store      *snapshotstore.Store
	drift      *driftcache.Cache
	metrics    *metrics.Registry
	metricsSrv *metrics.Server
	upgrader   *upgrader.Upgrader

	errCh chan error
}

// New constructs every component from cfg but starts nothing: workers are
// not yet spawned and no socket is bound. Call Run to bring it up.
func New(cfg *config.Config) (*Supervisor, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve own executable: %w", err)
	}

	state, err := loadOrNewState(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("supervisor: load initial state: %w", err)
	}

	drift, err := driftcache.Open(cfg.Snapshot.DriftCachePath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open drift cache: %w", err)
	}

	mirror, err := snapshotMirror(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("supervisor: configure snapshot mirror: %w", err)
	}
	store := snapshotstore.New(cfg.Snapshot.Path, mirror)

	reg := metrics.New(prometheus.DefaultRegisterer)

	pool := workerpool.New(workerpool.Config{
		Executable:           executable,
		CommandBufferSize:    cfg.Command.BufferSize,
		MaxCommandBufferSize: cfg.Command.MaxBufferSize,
		CommandTimeout:       cfg.Command.Timeout,
		ProbeTimeout:         cfg.Worker.ProbeTimeout,
		SoftStopTimeout:      cfg.Worker.SoftStopTimeout,
		CrashBudget: workerpool.CrashBudget{
			MaxCrashes: cfg.Worker.MaxCrashes,
			Window:     cfg.Worker.CrashWindow,
		},
	}, state)
	pool.SetMetrics(reg)

	// The supervisor itself binds no proxy listener sockets - those belong
	// to worker processes - so there is nothing yet to hand over on
	// upgrade. This returns empty until a listener-owning component exists.
	up := upgrader.New(upgrader.Config{Executable: executable}, state, pool, func() []upgrader.ListenerHandle {
		return nil
	})

	server := commandserver.NewServer(commandserver.Config{
		SocketPath: cfg.Command.SocketPath,
		CodecConfig: channelcodec.Config{
			Size:    cfg.Command.BufferSize,
			MaxSize: cfg.Command.MaxBufferSize,
		},
	}, state, pool, up)
	server.SetMetrics(reg)

	sup := &Supervisor{
		cfg:      cfg,
		state:    state,
		pool:     pool,
		server:   server,
		store:    store,
		drift:    drift,
		metrics:  reg,
		upgrader: up,
		errCh:    make(chan error, 4),
	}
	server.SetMutationObserver(sup.onMutate)

	if cfg.Metrics.Enabled {
		sup.metricsSrv = metrics.NewServer(cfg.Metrics.ListenAddress, prometheus.DefaultGatherer)
	}

	return sup, nil
}

// loadOrNewState restores ConfigState from the local snapshot (falling
// back to the remote mirror, then to an empty state) so a restarted
// supervisor resumes with the last known-good configuration.
func loadOrNewState(cfg config.SnapshotConfig) (*configstate.ConfigState, error) {
	mirror, err := snapshotMirror(cfg)
	if err != nil {
		return nil, err
	}
	store := snapshotstore.New(cfg.Path, mirror)

	data, err := store.Load(context.Background())
	if err != nil {
		if !errors.Is(err, snapshotstore.ErrNoMirror) {
			logger.Warn("failed to load snapshot, starting from empty state", "error", err)
		}
		return configstate.New(), nil
	}

	state, err := configstate.Restore(data)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return state, nil
}

func snapshotMirror(cfg config.SnapshotConfig) (snapshotstore.Mirror, error) {
	if cfg.S3 == nil {
		return snapshotstore.NullMirror{}, nil
	}
	return snapshotstore.NewS3MirrorFromConfig(context.Background(), snapshotstore.S3Config{
		Bucket:         cfg.S3.Bucket,
		Key:            cfg.S3.Key,
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
}

// onMutate records the cluster's new drift hash for every worker that
// acknowledged the mutation, then best-effort persists a fresh snapshot.
// Recording drift here, rather than in commandserver, keeps the control
// socket free of any dependency on the drift-cache's storage format.
func (s *Supervisor) onMutate(cmd wire.Request, diff configstate.Diff, acked []uint32) {
	ctx := context.Background()

	if clusterID := cmd.Content.ClusterID; clusterID != "" {
		if hash, ok := s.state.ClusterHash(clusterID); ok {
			for _, id := range acked {
				if err := s.drift.Record(ctx, clusterID, id, hash); err != nil {
					logger.Warn("failed to record drift hash", "cluster_id", clusterID, "worker_id", id, "error", err)
				}
			}
		}
	}

	s.saveSnapshot(ctx)
}

func (s *Supervisor) saveSnapshot(ctx context.Context) {
	data, err := s.state.Snapshot()
	if err != nil {
		logger.Warn("failed to snapshot config state", "error", err)
		return
	}
	if err := s.store.Save(ctx, data); err != nil {
		logger.Warn("failed to persist config snapshot", "error", err)
	}
}

// Run brings every component up and blocks until ctx is cancelled or a
// component fails irrecoverably, then tears everything down in reverse
// order.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < s.cfg.Worker.Count; i++ {
		id := s.pool.NextID()
		if _, err := s.pool.Spawn(ctx, id); err != nil {
			return fmt.Errorf("supervisor: spawn initial worker %d: %w", id, err)
		}
		go s.pool.Supervise(ctx, id)
	}

	if s.metricsSrv != nil {
		go func() {
			if err := s.metricsSrv.Serve(); err != nil {
				s.errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	go func() {
		if err := s.server.Serve(ctx); err != nil {
			s.errCh <- fmt.Errorf("command server: %w", err)
		}
	}()

	go s.probeLoop(ctx)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-s.errCh:
		logger.Error("supervisor component failed, shutting down", "error", runErr)
	}

	s.shutdown()
	return runErr
}

// probeLoop periodically checks worker liveness and refreshes the
// workers_running/workers_not_answering gauges.
func (s *Supervisor) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Worker.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pool.Probe(ctx)
			s.pool.UpdateGauges()
		}
	}
}

// shutdown stops every worker, persists a final snapshot, and releases
// every resource. Best-effort: logs failures rather than returning them,
// since a shutdown in progress has nowhere left to report to.
func (s *Supervisor) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Worker.SoftStopTimeout+5*time.Second)
	defer cancel()

	s.server.Stop()

	for id := range s.pool.Sessions() {
		if err := s.pool.Stop(shutdownCtx, id); err != nil {
			logger.Warn("failed to stop worker during shutdown", "worker_id", id, "error", err)
		}
	}

	s.saveSnapshot(shutdownCtx)

	if err := s.drift.Close(); err != nil {
		logger.Warn("failed to close drift cache", "error", err)
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down metrics server", "error", err)
		}
	}
}
