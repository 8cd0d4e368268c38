package workerpool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sozu-io/sozu/internal/configstate"
	"github.com/sozu-io/sozu/internal/wire"
	"github.com/sozu-io/sozu/internal/worker"
)

// Broadcast dispatches req to every Running worker and returns a channel
// carrying one WorkerResponse per worker, closed once every worker has
// produced a terminal response or command_timeout elapses. A worker that
// disconnects mid-request contributes a synthetic "worker disconnected"
// terminal response instead of blocking the aggregate.
func (p *Pool) Broadcast(ctx context.Context, req wire.Request) <-chan wire.WorkerResponse {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	out := make(chan wire.WorkerResponse)

	p.mu.RLock()
	targets := make([]workerTarget, 0, len(p.workers))
	for id, w := range p.workers {
		if w.State() == wire.RunStateRunning {
			targets = append(targets, workerTarget{id: id, session: w})
		}
	}
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)

	go func() {
		defer close(out)
		defer cancel()

		var wgDone = make(chan struct{}, len(targets))
		for _, t := range targets {
			t := t
			go func() {
				resp, err := t.session.SendAndWait(ctx, req)
				if err != nil {
					resp = wire.ErrorProxyResponse(req.ID, wire.ErrWorkerDisconnected)
				}
				select {
				case out <- wire.WorkerResponse{WorkerID: t.id, Response: resp}:
				case <-ctx.Done():
				}
				wgDone <- struct{}{}
			}()
		}
		for range targets {
			<-wgDone
		}
	}()

	return out
}

type workerTarget struct {
	id      uint32
	session *worker.Session
}

// FanOutMutation applies cmd to the authoritative ConfigState unconditionally,
// then broadcasts it to every running worker. Per-worker delivery failures
// do not roll back the state change; a worker that missed a mutation is
// reconciled with a full snapshot the next time Reconcile runs for it.
func (p *Pool) FanOutMutation(ctx context.Context, cmd wire.Request) (configstate.Diff, <-chan wire.WorkerResponse, error) {
	diff, err := p.state.Apply(cmd)
	if err != nil {
		return configstate.Diff{}, nil, fmt.Errorf("workerpool: apply mutation: %w", err)
	}
	p.metrics.RecordBroadcast(string(cmd.Kind))
	return diff, p.Broadcast(ctx, cmd), nil
}

// Reconcile sends the full authoritative snapshot to one worker, used after
// a restart or when its drift hash no longer matches the authoritative
// state.
func (p *Pool) Reconcile(ctx context.Context, workerID uint32) error {
	p.mu.RLock()
	w, ok := p.workers[workerID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("workerpool: reconcile: no such worker %d", workerID)
	}

	snapshot, err := p.state.Snapshot()
	if err != nil {
		return fmt.Errorf("workerpool: reconcile: snapshot: %w", err)
	}

	req := wire.Request{
		ID:      uuid.NewString(),
		Version: wire.ProtocolVersion,
		Kind:    wire.RequestReconcileState,
		Content: wire.RequestContent{Snapshot: snapshot},
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()
	if _, err := w.SendAndWait(ctx, req); err != nil {
		return fmt.Errorf("workerpool: reconcile worker %d: %w", workerID, err)
	}
	return nil
}

// Probe sends a lightweight status request to every worker and marks any
// that fail to answer within probe_timeout as NotAnswering.
func (p *Pool) Probe(ctx context.Context) {
	p.mu.RLock()
	workers := make([]*worker.Session, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.RUnlock()

	for _, w := range workers {
		w := w
		go func() {
			ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
			defer cancel()
			_, err := w.SendAndWait(ctx, wire.Request{ID: uuid.NewString(), Version: wire.ProtocolVersion, Kind: wire.RequestStatus})
			if err != nil {
				w.SetState(wire.RunStateNotAnswering)
				return
			}
			if w.State() == wire.RunStateNotAnswering {
				w.SetState(wire.RunStateRunning)
			}
		}()
	}
}

// runBackoff returns the exponential backoff delay for the nth consecutive
// restart of a worker slot, capped at 30s as in the original implementation.
func runBackoff(attempt int) time.Duration {
	delay := 2 * time.Second
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= 30*time.Second {
			return 30 * time.Second
		}
	}
	return delay
}
