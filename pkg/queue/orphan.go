package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// orphanState tracks orphan scan metrics (thread-safe).
type orphanState struct {
	mu        sync.Mutex
	lastScan  time.Time
	recovered int
}

// inFlight reports whether the state indicates an execution that
// should be heartbeating. Human gates and the error state legitimately
// sit idle and are never recovered.
func inFlight(s models.AgentState) bool {
	return s.IsExecuting() && !s.IsHumanGate() && s != models.StateError
}

// runOrphanScan periodically scans for orphaned executions. All pods
// run this independently; recovery is idempotent.
func (p *Pool) runOrphanScan(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := recoverOrphans(ctx, p.agents, p.config.OrphanThreshold, p.isClaimed)
			if err != nil {
				slog.Error("Orphan scan failed", "error", err)
				continue
			}
			p.orphans.mu.Lock()
			p.orphans.lastScan = time.Now()
			p.orphans.recovered += recovered
			p.orphans.mu.Unlock()
		}
	}
}

// RecoverStartupOrphans moves agents left mid-execution by a previous
// process into the error state so they can be resumed. Called once
// during boot, before the pool starts accepting work.
func RecoverStartupOrphans(ctx context.Context, agents store.AgentStateStore, staleAfter time.Duration) error {
	recovered, err := recoverOrphans(ctx, agents, staleAfter, func(string) bool { return false })
	if err != nil {
		return err
	}
	if recovered > 0 {
		slog.Warn("Recovered startup orphans from previous run", "count", recovered)
	}
	return nil
}

// recoverOrphans finds in-flight agents with a stale lastUpdate that
// are not claimed on this pod and parks them in the error state with
// an explanatory message. The scan runs under the ambient user scope.
func recoverOrphans(ctx context.Context, agents store.AgentStateStore, staleAfter time.Duration, claimedHere func(string) bool) (int, error) {
	running, err := agents.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list running agents: %w", err)
	}

	threshold := time.Now().Add(-staleAfter).UnixMilli()
	recovered := 0
	for _, summary := range running {
		if !inFlight(summary.State) || summary.LastUpdate >= threshold || claimedHere(summary.AgentID) {
			continue
		}

		agent, err := agents.Load(ctx, summary.AgentID)
		if err != nil {
			slog.Error("Failed to load orphaned agent", "agent_id", summary.AgentID, "error", err)
			continue
		}
		// Re-check after the load: the summary may be stale.
		if !inFlight(agent.State) || agent.LastUpdate >= threshold {
			continue
		}

		lastHeartbeat := time.UnixMilli(agent.LastUpdate).Format(time.RFC3339)
		agent.Error = fmt.Sprintf("orphaned: no heartbeat since %s", lastHeartbeat)
		agent.State = models.StateError
		agent.Touch()
		if err := agents.Save(ctx, agent); err != nil {
			slog.Error("Failed to recover orphaned agent", "agent_id", agent.AgentID, "error", err)
			continue
		}

		slog.Warn("Orphaned agent parked for resume",
			"agent_id", agent.AgentID, "last_heartbeat", lastHeartbeat)
		recovered++
	}
	return recovered, nil
}
