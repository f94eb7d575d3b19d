package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// task is one queued agent execution. The user is captured at submit
// time so workers run under the submitter's scope.
type task struct {
	agentID string
	user    models.User
	run     func(ctx context.Context) error
}

// Pool manages the worker goroutines, the submission backlog, and the
// per-agent claim registry that enforces one writer per agent.
type Pool struct {
	podID   string
	agents  store.AgentStateStore
	config  Config
	tasks   chan task
	workers []*Worker

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
	// claimed holds agent ids with a queued or running execution.
	claimed map[string]struct{}
	// active maps a running agent id to its cancel function.
	active map[string]context.CancelFunc

	orphans orphanState
}

// NewPool creates a worker pool. cfg zero fields take defaults.
func NewPool(podID string, agents store.AgentStateStore, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		podID:   podID,
		agents:  agents,
		config:  cfg,
		tasks:   make(chan task, cfg.QueueDepth),
		workers: make([]*Worker, 0, cfg.WorkerCount),
		stopCh:  make(chan struct{}),
		claimed: make(map[string]struct{}),
		active:  make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan scan. Safe to call
// more than once; subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true
	p.mu.Unlock()

	slog.Info("Starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := newWorker(workerID, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanScan(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop drains the pool gracefully: no new submissions are accepted,
// and workers finish their current executions before exiting.
func (p *Pool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	p.mu.Lock()
	p.stopped = true
	running := make([]string, 0, len(p.active))
	for id := range p.active {
		running = append(running, id)
	}
	p.mu.Unlock()

	if len(running) > 0 {
		slog.Info("Waiting for active executions to complete",
			"count", len(running), "agent_ids", running)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// Submit enqueues an execution for the agent. A second submission for
// the same agent while one is queued or running fails with
// ErrAgentBusy; a full backlog fails with ErrQueueFull.
func (p *Pool) Submit(agent *models.AgentContext, run func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	if _, busy := p.claimed[agent.AgentID]; busy {
		p.mu.Unlock()
		return fmt.Errorf("agent %s: %w", agent.AgentID, ErrAgentBusy)
	}
	p.claimed[agent.AgentID] = struct{}{}
	p.mu.Unlock()

	select {
	case p.tasks <- task{agentID: agent.AgentID, user: agent.User, run: run}:
		return nil
	default:
		p.release(agent.AgentID)
		return ErrQueueFull
	}
}

// Cancel triggers context cancellation for a running execution on this
// pod. Returns true when the agent was found and cancelled here.
func (p *Pool) Cancel(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.active[agentID]; ok {
		cancel()
		return true
	}
	return false
}

// registerActive stores the cancel function while an execution runs.
func (p *Pool) registerActive(agentID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[agentID] = cancel
}

// release drops both the active registration and the claim.
func (p *Pool) release(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, agentID)
	delete(p.claimed, agentID)
}

// isClaimed reports whether this pod holds a claim on the agent.
func (p *Pool) isClaimed(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.claimed[agentID]
	return ok
}

// Health returns the current health status of the pool.
func (p *Pool) Health() *PoolHealth {
	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	p.mu.RLock()
	activeAgents := len(p.active)
	p.mu.RUnlock()

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastScan
	orphansRecovered := p.orphans.recovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        len(p.workers) > 0,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		QueueDepth:       len(p.tasks),
		ActiveAgents:     activeAgents,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}
