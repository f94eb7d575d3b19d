package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/typedai/typedai/pkg/scope"
)

// Worker is a single pool worker consuming the submission channel.
type Worker struct {
	id       string
	pool     *Pool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentAgentID string
	tasksProcessed int
	lastActivity   time.Time
}

func newWorker(id string, pool *Pool) *Worker {
	return &Worker{
		id:           id,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its
// current execution. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         w.status,
		CurrentAgentID: w.currentAgentID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.pool.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		case t := <-w.pool.tasks:
			w.process(ctx, t)
		}
	}
}

// process runs one queued execution under the submitter's scope, with
// a wall-clock timeout, a cancel registration for API-triggered
// cancellation, and a heartbeat for cross-pod orphan detection.
func (w *Worker) process(ctx context.Context, t task) {
	log := slog.With("agent_id", t.agentID, "worker_id", w.id)
	log.Info("Execution claimed")

	w.setStatus(WorkerStatusWorking, t.agentID)
	defer w.setStatus(WorkerStatusIdle, "")
	defer w.pool.release(t.agentID)

	execCtx, cancel := context.WithTimeout(scope.WithUser(ctx, t.user), w.pool.config.ExecutionTimeout)
	defer cancel()

	w.pool.registerActive(t.agentID, cancel)

	heartbeatCtx, stopHeartbeat := context.WithCancel(execCtx)
	defer stopHeartbeat()
	go w.runHeartbeat(heartbeatCtx, t.agentID)

	err := t.run(execCtx)
	stopHeartbeat()

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	if err != nil {
		log.Error("Execution finished with error", "error", err)
		return
	}
	log.Info("Execution complete")
}

// runHeartbeat periodically bumps the agent's lastUpdate so other pods
// do not mistake a long-running execution for an orphan. Best effort:
// the runner's per-iteration checkpoint is the authoritative write,
// this only covers iterations longer than the heartbeat interval.
func (w *Worker) runHeartbeat(ctx context.Context, agentID string) {
	ticker := time.NewTicker(w.pool.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agent, err := w.pool.agents.Load(ctx, agentID)
			if err != nil {
				slog.Warn("Heartbeat load failed", "agent_id", agentID, "error", err)
				continue
			}
			if err := w.pool.agents.UpdateState(ctx, agent, agent.State); err != nil {
				slog.Warn("Heartbeat update failed", "agent_id", agentID, "error", err)
			}
		}
	}
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, agentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentAgentID = agentID
	w.lastActivity = time.Now()
}
