// Package cleanup enforces agent retention: terminal agents that have
// not been touched within the retention window are deleted, along with
// their children. Operations are idempotent and safe to run from
// multiple pods.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/typedai/typedai/pkg/store"
)

// Config controls the retention loop.
type Config struct {
	// Retention is how long terminal agents are kept after their last
	// update. Zero disables pruning.
	Retention time.Duration
	// Interval is the time between prune passes.
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	return c
}

// Service periodically prunes expired terminal agents.
type Service struct {
	agents store.AgentStateStore
	config Config

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention service over the agent store.
func NewService(agents store.AgentStateStore, cfg Config) *Service {
	return &Service{agents: agents, config: cfg.withDefaults()}
}

// Start launches the background prune loop. The context must carry the
// user scope the pruned agents belong to.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	if s.config.Retention <= 0 {
		slog.Info("Agent retention disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Retention service started",
		"retention", s.config.Retention,
		"interval", s.config.Interval)
}

// Stop signals the prune loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.prune(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	count, err := s.Prune(ctx)
	if err != nil {
		slog.Error("Retention: prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired agents", "count", count)
	}
}

// Prune runs one pass: terminal agents whose last update is older than
// the retention window are deleted. The store removes children with
// their parent and skips anything still executing. Returns how many
// agents were selected.
func (s *Service) Prune(ctx context.Context) (int, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.config.Retention).UnixMilli()
	var expired []string
	for _, a := range agents {
		if a.State.IsTerminal() && a.LastUpdate < cutoff {
			expired = append(expired, a.AgentID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.agents.Delete(ctx, expired); err != nil {
		return 0, err
	}
	return len(expired), nil
}
