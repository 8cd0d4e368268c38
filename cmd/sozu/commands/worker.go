package commands

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/wire"
)

var (
	workerFD                 int
	workerConfigurationFD    int
	workerID                 uint32
	workerCommandBufferSize  int
	workerMaxCommandBufferSize int
)

// workerCmd is launched by the supervisor's own re-exec of this binary
// (internal/workerpool.Pool.Spawn) - never run directly by an operator. It
// holds a projection of ConfigState fed to it once at startup over
// --configuration-state-fd and kept current by RECONCILE_STATE and the
// mutation kinds mirrored to it over --fd. The actual data-plane event loop
// (accepting connections, proxying HTTP/TCP traffic) is out of scope here;
// this process only proves out the channel protocol and projection-tracking
// side of a worker.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "internal: run as a supervised worker process",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerFD, "fd", 3, "file descriptor for the supervisor control channel")
	workerCmd.Flags().IntVar(&workerConfigurationFD, "configuration-state-fd", 4, "file descriptor for the initial ConfigState snapshot pipe")
	workerCmd.Flags().Uint32Var(&workerID, "id", 0, "worker id assigned by the supervisor")
	workerCmd.Flags().IntVar(&workerCommandBufferSize, "command-buffer-size", 0, "soft per-frame buffer size")
	workerCmd.Flags().IntVar(&workerMaxCommandBufferSize, "max-command-buffer-size", 0, "hard per-frame size cap")
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger.InitWithWriter(os.Stderr, "INFO", "text", false)
	logger.Info("worker starting", "worker_id", workerID, "pid", os.Getpid())

	snapshot, err := io.ReadAll(os.NewFile(uintptr(workerConfigurationFD), "configuration-state"))
	if err != nil {
		return fmt.Errorf("worker %d: read initial configuration state: %w", workerID, err)
	}
	state, err := configstate.Restore(snapshot)
	if err != nil {
		return fmt.Errorf("worker %d: restore configuration state: %w", workerID, err)
	}

	conn, err := net.FileConn(os.NewFile(uintptr(workerFD), "supervisor-channel"))
	if err != nil {
		return fmt.Errorf("worker %d: wrap control channel: %w", workerID, err)
	}
	codec := channelcodec.New(conn, channelcodec.Config{Size: workerCommandBufferSize, MaxSize: workerMaxCommandBufferSize})
	defer codec.Close()

	for {
		var req wire.Request
		if err := codec.RecvInto(&req); err != nil {
			if errors.Is(err, channelcodec.ErrPeerClosed) {
				logger.Info("worker channel closed, exiting", "worker_id", workerID)
				return nil
			}
			return fmt.Errorf("worker %d: read request: %w", workerID, err)
		}

		resp := handleWorkerRequest(state, req)
		if err := codec.Send(resp); err != nil {
			return fmt.Errorf("worker %d: send response: %w", workerID, err)
		}

		if req.Kind == wire.RequestShutdown {
			logger.Info("worker shutting down", "worker_id", workerID)
			return nil
		}
	}
}

// handleWorkerRequest mirrors a supervisor-dispatched request against the
// worker's local projection of ConfigState and answers it, the same way
// CommandServer answers a control-socket client - except a worker only ever
// receives mutation kinds (mirrored by WorkerPool.FanOutMutation),
// RECONCILE_STATE, query kinds, and SHUTDOWN.
func handleWorkerRequest(state *configstate.ConfigState, req wire.Request) wire.ProxyResponse {
	switch req.Kind {
	case wire.RequestReconcileState:
		restored, err := configstate.Restore(req.Content.Snapshot)
		if err != nil {
			return wire.ErrorProxyResponse(req.ID, fmt.Sprintf("reconcile: %v", err))
		}
		*state = *restored
		return wire.OkProxyResponse(req.ID, nil)

	case wire.RequestShutdown:
		return wire.OkProxyResponse(req.ID, nil)

	case wire.RequestQueryClusters:
		var clusters []wire.QueryAnswerCluster
		for _, id := range state.ClusterIDs() {
			if answer, ok := state.ClusterAnswer(id); ok {
				clusters = append(clusters, answer)
			}
		}
		return wire.OkProxyResponse(req.ID, &wire.ProxyResponseContent{
			Kind:  wire.ProxyContentQuery,
			Query: &wire.QueryAnswer{Kind: wire.QueryAnswerClusters, Clusters: clusters},
		})

	case wire.RequestQueryClustersHashes:
		hashes := make(map[string]uint64)
		for _, id := range state.ClusterIDs() {
			if hash, ok := state.ClusterHash(id); ok {
				hashes[id] = hash
			}
		}
		return wire.OkProxyResponse(req.ID, &wire.ProxyResponseContent{
			Kind:  wire.ProxyContentQuery,
			Query: &wire.QueryAnswer{Kind: wire.QueryAnswerClustersHashes, ClustersHashes: hashes},
		})

	case wire.RequestQueryCertificates:
		return wire.OkProxyResponse(req.ID, &wire.ProxyResponseContent{
			Kind:  wire.ProxyContentQuery,
			Query: &wire.QueryAnswer{Kind: wire.QueryAnswerCertificates, Certificates: state.CertificatesView()},
		})

	case wire.RequestQueryMetrics:
		return wire.OkProxyResponse(req.ID, &wire.ProxyResponseContent{
			Kind:  wire.ProxyContentMetrics,
			Query: &wire.QueryAnswer{Kind: wire.QueryAnswerMetricsKind, Metrics: &wire.WorkerMetrics{}},
		})

	default:
		if _, err := state.Apply(req); err != nil {
			return wire.ErrorProxyResponse(req.ID, err.Error())
		}
		return wire.OkProxyResponse(req.ID, nil)
	}
}
