package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/commandserver"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/metrics"
	"github.com/sozu-io/sozu/internal/upgrader"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/workerpool"
	"github.com/sozu-io/sozu/pkg/config"
)

var (
	handoffFD                 int
	handoffCommandBufferSize  int
	handoffMaxCommandBufferSize int
)

// mainCmd is the successor side of a zero-downtime self-upgrade
// (internal/upgrader.Upgrader.UpgradeMain execs the new binary with this
// sub-command). It adopts the predecessor's ConfigState and every worker
// channel over the inherited handoff descriptor, then runs exactly like
// `start --foreground` from that point on.
var mainCmd = &cobra.Command{
	Use:    "main",
	Short:  "internal: adopt state from a predecessor supervisor during upgrade",
	Hidden: true,
	RunE:   runMainHandoff,
}

func init() {
	mainCmd.Flags().IntVar(&handoffFD, "fd", 3, "file descriptor for the upgrade handoff channel")
	mainCmd.Flags().IntVar(&handoffCommandBufferSize, "command-buffer-size", 0, "soft per-frame buffer size for adopted worker channels")
	mainCmd.Flags().IntVar(&handoffMaxCommandBufferSize, "max-command-buffer-size", 0, "hard per-frame size cap for adopted worker channels")
}

func runMainHandoff(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}

	pool := workerpool.New(workerpool.Config{
		Executable:           executable,
		CommandBufferSize:    handoffCommandBufferSize,
		MaxCommandBufferSize: handoffMaxCommandBufferSize,
		CommandTimeout:       cfg.Command.Timeout,
		ProbeTimeout:         cfg.Worker.ProbeTimeout,
		SoftStopTimeout:      cfg.Worker.SoftStopTimeout,
		CrashBudget: workerpool.CrashBudget{
			MaxCrashes: cfg.Worker.MaxCrashes,
			Window:     cfg.Worker.CrashWindow,
		},
	}, configstate.New())

	state, err := upgrader.AdoptFromMain(handoffFD, pool, func(address string, kind wire.ListenerKind, fd int) {
		logger.Warn("inherited listener socket has no owner yet, closing", "address", address, "kind", kind)
		_ = os.NewFile(uintptr(fd), address).Close()
	})
	if err != nil {
		return fmt.Errorf("adopt state from predecessor: %w", err)
	}
	pool.SetState(state)

	reg := metrics.New(prometheus.DefaultRegisterer)
	pool.SetMetrics(reg)

	up := upgrader.New(upgrader.Config{Executable: executable}, state, pool, func() []upgrader.ListenerHandle { return nil })

	server := commandserver.NewServer(commandserver.Config{
		SocketPath: cfg.Command.SocketPath,
		CodecConfig: channelcodec.Config{
			Size:    cfg.Command.BufferSize,
			MaxSize: cfg.Command.MaxBufferSize,
		},
	}, state, pool, up)
	server.SetMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(ctx) }()

	for id := range pool.Sessions() {
		go pool.Supervise(ctx, id)
	}

	logger.Info("successor supervisor adopted predecessor state", "pid", os.Getpid(), "workers", len(pool.Sessions()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-serverDone:
		if err != nil {
			logger.Error("command server error", "error", err)
		}
	}

	cancel()
	server.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.SoftStopTimeout+5*time.Second)
	defer shutdownCancel()
	for id := range pool.Sessions() {
		if err := pool.Stop(shutdownCtx, id); err != nil {
			logger.Warn("failed to stop worker during shutdown", "worker_id", id, "error", err)
		}
	}

	return nil
}
