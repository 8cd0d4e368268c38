package workerpool

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/sozu-io/sozu/internal/logger"
	"github.com/sozu-io/sozu/internal/wire"
)

// Supervise blocks waiting for id's process to exit, then - unless the
// worker was deliberately stopped - respawns it under exponential backoff,
// pausing once the crash budget within its window is exhausted. It returns
// when ctx is cancelled or the worker is permanently paused.
func (p *Pool) Supervise(ctx context.Context, id uint32) {
	for {
		p.mu.RLock()
		w, ok := p.workers[id]
		p.mu.RUnlock()
		if !ok {
			return
		}

		err := w.Wait()

		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.State() == wire.RunStateStopping {
			return
		}

		logger.Warn("worker exited unexpectedly", "worker_id", id, "error", err)

		record := p.crashRecordFor(id)
		record.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-p.cfg.CrashBudget.Window)
		kept := record.times[:0]
		for _, t := range record.times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		record.times = append(kept, now)
		crashes := len(record.times)
		paused := crashes > p.cfg.CrashBudget.MaxCrashes
		record.paused = paused
		record.mu.Unlock()

		if paused {
			logger.Warn("worker crash budget exhausted, pausing auto-restart",
				"worker_id", id, "crashes", crashes, "window", p.cfg.CrashBudget.Window)
			w.SetState(wire.RunStateStopped)
			return
		}

		w.IncrementRestartCount()
		delay := runBackoff(crashes)
		logger.Info("restarting worker after backoff", "worker_id", id, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}

		if _, err := p.Spawn(ctx, id); err != nil {
			logger.Error("failed to respawn worker", "worker_id", id, "error", err)
			return
		}
		p.metrics.RecordWorkerRestart(fmt.Sprintf("%d", id))
		if err := p.Reconcile(ctx, id); err != nil {
			logger.Warn("failed to reconcile respawned worker", "worker_id", id, "error", err)
		}
	}
}

func (p *Pool) crashRecordFor(id uint32) *crashRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.crashes[id]
	if !ok {
		r = &crashRecord{}
		p.crashes[id] = r
	}
	return r
}

// IsPaused reports whether id's auto-restart has been paused by the crash
// budget, requiring an explicit LaunchWorker to resume.
func (p *Pool) IsPaused(id uint32) bool {
	p.mu.Lock()
	r, ok := p.crashes[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Stop sends a graceful-stop request to a worker, then delivers SIGKILL
// after soft_stop_timeout if it hasn't exited.
func (p *Pool) Stop(ctx context.Context, id uint32) error {
	p.mu.RLock()
	w, ok := p.workers[id]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	w.SetState(wire.RunStateStopping)
	stopCtx, cancel := context.WithTimeout(ctx, p.cfg.SoftStopTimeout)
	defer cancel()

	_, _ = w.SendAndWait(stopCtx, wire.Request{Kind: wire.RequestShutdown})

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(p.cfg.SoftStopTimeout):
		return w.Signal(syscall.SIGKILL)
	}
}
