package memory

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/typedai/typedai/pkg/functions"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
)

// AgentStore is the in-memory AgentStateStore.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]*models.AgentContext
}

// NewAgentStore creates an empty agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]*models.AgentContext)}
}

var _ store.AgentStateStore = (*AgentStore)(nil)

// Save writes the full context, linking it into the parent's child set
// when ParentAgentID is set. Parent and child are written together.
func (s *AgentStore) Save(ctx context.Context, agent *models.AgentContext) error {
	cp, err := clone(agent)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if agent.ParentAgentID != "" {
		parent, ok := s.agents[agent.ParentAgentID]
		if !ok {
			return store.ErrParentMissing
		}
		if !slices.Contains(parent.ChildAgents, agent.AgentID) {
			parent.ChildAgents = append(parent.ChildAgents, agent.AgentID)
			parent.LastUpdate = time.Now().UnixMilli()
		}
	}
	s.agents[agent.AgentID] = cp
	return nil
}

// UpdateState writes only state and lastUpdate, then mutates the
// caller's context.
func (s *AgentStore) UpdateState(ctx context.Context, agent *models.AgentContext, state models.AgentState) error {
	now := time.Now().UnixMilli()

	s.mu.Lock()
	stored, ok := s.agents[agent.AgentID]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	stored.State = state
	stored.LastUpdate = now
	s.mu.Unlock()

	agent.State = state
	agent.LastUpdate = now
	return nil
}

// Load returns a copy of the stored context.
func (s *AgentStore) Load(ctx context.Context, agentID string) (*models.AgentContext, error) {
	s.mu.RLock()
	stored, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(stored)
}

// List returns the current user's agents ordered by lastUpdate desc.
func (s *AgentStore) List(ctx context.Context) ([]models.AgentContextSummary, error) {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []models.AgentContextSummary
	for _, a := range s.agents {
		if a.User.ID == user.ID {
			out = append(out, a.Summary())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdate > out[j].LastUpdate })
	return out, nil
}

// ListRunning returns non-terminal agents ordered by (state asc,
// lastUpdate desc) — the document-store sort preserved for
// portability.
func (s *AgentStore) ListRunning(ctx context.Context) ([]models.AgentContextSummary, error) {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []models.AgentContextSummary
	for _, a := range s.agents {
		if a.User.ID == user.ID && a.State.IsExecuting() {
			out = append(out, a.Summary())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].LastUpdate > out[j].LastUpdate
	})
	return out, nil
}

// Delete removes the given agents and their children. Skips agents the
// current user does not own, agents in any non-terminal state (human
// gates included), and child agents (deleting a parent cascades
// instead).
func (s *AgentStore) Delete(ctx context.Context, agentIDs []string) error {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range agentIDs {
		a, ok := s.agents[id]
		if !ok {
			continue
		}
		if a.User.ID != user.ID {
			slog.Warn("Skipping delete of agent owned by another user", "agent_id", id)
			continue
		}
		if a.State.IsExecuting() {
			slog.Warn("Skipping delete of executing agent", "agent_id", id, "state", a.State)
			continue
		}
		if a.ParentAgentID != "" {
			slog.Warn("Skipping delete of child agent; delete the parent instead", "agent_id", id)
			continue
		}
		for _, childID := range a.ChildAgents {
			delete(s.agents, childID)
		}
		delete(s.agents, id)
	}
	return nil
}

// UpdateFunctions replaces the agent's capability set, skipping names
// the registry does not know.
func (s *AgentStore) UpdateFunctions(ctx context.Context, agentID string, functionNames []string) error {
	resolved := functions.ResolveNames(functionNames)

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return store.ErrNotFound
	}
	a.Functions = resolved
	a.LastUpdate = time.Now().UnixMilli()
	return nil
}
