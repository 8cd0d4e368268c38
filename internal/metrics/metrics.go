// Package metrics is the supervisor's process-wide Prometheus registry: a
// handful of counters and gauges covering crashes, restarts, broadcasts and
// command outcomes, scraped locally over HTTP. It does not push anywhere;
// long-term storage is an external collaborator's job.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the supervisor exposes. Every method handles
// a nil receiver gracefully, so a nil *Registry is a zero-overhead no-op.
type Registry struct {
	PanicsTotal         prometheus.Counter
	WorkerRestartsTotal *prometheus.CounterVec
	BroadcastsTotal     *prometheus.CounterVec
	CommandTotal        *prometheus.CounterVec
	WorkersRunning      prometheus.Gauge
	WorkersNotAnswering prometheus.Gauge
}

var (
	once     sync.Once
	instance *Registry
)

// New builds and registers every metric against reg exactly once; later
// calls return the same instance regardless of reg. Pass nil to use
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Registry {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		factory := promauto.With(reg)

		instance = &Registry{
			PanicsTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "sozu_panics_total",
				Help: "Total number of recovered panics in the supervisor process.",
			}),
			WorkerRestartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sozu_worker_restarts_total",
				Help: "Total worker restarts by worker id.",
			}, []string{"worker_id"}),
			BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sozu_broadcasts_total",
				Help: "Total mutations fanned out to workers, by request kind.",
			}, []string{"kind"}),
			CommandTotal: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "sozu_command_total",
				Help: "Total control-socket commands processed, by outcome.",
			}, []string{"status"}),
			WorkersRunning: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sozu_workers_running",
				Help: "Current number of workers in the Running state.",
			}),
			WorkersNotAnswering: factory.NewGauge(prometheus.GaugeOpts{
				Name: "sozu_workers_not_answering",
				Help: "Current number of workers that failed their last health probe.",
			}),
		}
	})
	return instance
}

func (r *Registry) RecordPanic() {
	if r == nil {
		return
	}
	r.PanicsTotal.Inc()
}

func (r *Registry) RecordWorkerRestart(workerID string) {
	if r == nil {
		return
	}
	r.WorkerRestartsTotal.WithLabelValues(workerID).Inc()
}

func (r *Registry) RecordBroadcast(kind string) {
	if r == nil {
		return
	}
	r.BroadcastsTotal.WithLabelValues(kind).Inc()
}

func (r *Registry) RecordCommand(status string) {
	if r == nil {
		return
	}
	r.CommandTotal.WithLabelValues(status).Inc()
}

func (r *Registry) SetWorkersRunning(n int) {
	if r == nil {
		return
	}
	r.WorkersRunning.Set(float64(n))
}

func (r *Registry) SetWorkersNotAnswering(n int) {
	if r == nil {
		return
	}
	r.WorkersNotAnswering.Set(float64(n))
}

// Server exposes the registry on a loopback HTTP listener for local
// scraping, grounded on the teacher's go-chi/chi router conventions.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a /metrics-only chi router bound to addr.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the metrics HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
