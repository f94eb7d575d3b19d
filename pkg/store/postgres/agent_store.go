package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/typedai/typedai/pkg/functions"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
)

// AgentStore is the PostgreSQL AgentStateStore.
type AgentStore struct {
	db *stdsql.DB
}

var _ store.AgentStateStore = (*AgentStore)(nil)

const upsertAgentSQL = `
	INSERT INTO agent_contexts (agent_id, user_id, parent_agent_id, state, last_update, doc)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (agent_id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		parent_agent_id = EXCLUDED.parent_agent_id,
		state = EXCLUDED.state,
		last_update = EXCLUDED.last_update,
		doc = EXCLUDED.doc`

// Save writes the full context. A child save reads the parent, links
// the child id into its ChildAgents, and writes both rows in one
// transaction.
func (s *AgentStore) Save(ctx context.Context, agent *models.AgentContext) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if agent.ParentAgentID != "" {
		parent, err := loadAgentTx(ctx, tx, agent.ParentAgentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.ErrParentMissing
			}
			return err
		}
		if !slices.Contains(parent.ChildAgents, agent.AgentID) {
			parent.ChildAgents = append(parent.ChildAgents, agent.AgentID)
			parent.LastUpdate = time.Now().UnixMilli()
			if err := upsertAgentTx(ctx, tx, parent); err != nil {
				return err
			}
		}
	}
	if err := upsertAgentTx(ctx, tx, agent); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertAgentTx(ctx context.Context, tx *stdsql.Tx, agent *models.AgentContext) error {
	doc, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to marshal agent context: %w", err)
	}
	_, err = tx.ExecContext(ctx, upsertAgentSQL,
		agent.AgentID, agent.User.ID, agent.ParentAgentID, string(agent.State), agent.LastUpdate, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert agent context: %w", err)
	}
	return nil
}

func loadAgentTx(ctx context.Context, tx *stdsql.Tx, agentID string) (*models.AgentContext, error) {
	var doc []byte
	err := tx.QueryRowContext(ctx,
		`SELECT doc FROM agent_contexts WHERE agent_id = $1 FOR UPDATE`, agentID).Scan(&doc)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent context: %w", err)
	}
	return unmarshalAgent(doc)
}

func unmarshalAgent(doc []byte) (*models.AgentContext, error) {
	var agent models.AgentContext
	if err := json.Unmarshal(doc, &agent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent context: %w", err)
	}
	return &agent, nil
}

// UpdateState writes only the state and lastUpdate fields, patching the
// stored document in place, then mutates the caller's context.
func (s *AgentStore) UpdateState(ctx context.Context, agent *models.AgentContext, state models.AgentState) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_contexts SET
			state = $2,
			last_update = $3,
			doc = doc || jsonb_build_object('state', $2::text, 'lastUpdate', $3::bigint)
		WHERE agent_id = $1`,
		agent.AgentID, string(state), now)
	if err != nil {
		return fmt.Errorf("failed to update agent state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	agent.State = state
	agent.LastUpdate = now
	return nil
}

// Load returns the full context, or ErrNotFound.
func (s *AgentStore) Load(ctx context.Context, agentID string) (*models.AgentContext, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM agent_contexts WHERE agent_id = $1`, agentID).Scan(&doc)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent context: %w", err)
	}
	return unmarshalAgent(doc)
}

// List returns the current user's agents ordered by lastUpdate desc.
func (s *AgentStore) List(ctx context.Context) ([]models.AgentContextSummary, error) {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.querySummaries(ctx, `
		SELECT doc FROM agent_contexts
		WHERE user_id = $1
		ORDER BY last_update DESC`, user.ID)
}

// ListRunning returns non-terminal agents ordered by (state asc,
// lastUpdate desc).
func (s *AgentStore) ListRunning(ctx context.Context) ([]models.AgentContextSummary, error) {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.querySummaries(ctx, `
		SELECT doc FROM agent_contexts
		WHERE user_id = $1 AND NOT (state = ANY($2))
		ORDER BY state ASC, last_update DESC`,
		user.ID, terminalStatesParam())
}

func terminalStatesParam() []string {
	out := make([]string, len(models.TerminalStates))
	for i, s := range models.TerminalStates {
		out[i] = string(s)
	}
	return out
}

func (s *AgentStore) querySummaries(ctx context.Context, query string, args ...any) ([]models.AgentContextSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent contexts: %w", err)
	}
	defer rows.Close()

	var out []models.AgentContextSummary
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan agent context: %w", err)
		}
		agent, err := unmarshalAgent(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, agent.Summary())
	}
	return out, rows.Err()
}

// Delete removes the given agents and their children. Agents not owned
// by the current user, in an executing state, or having a parent are
// skipped.
func (s *AgentStore) Delete(ctx context.Context, agentIDs []string) error {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range agentIDs {
		agent, err := loadAgentTx(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if agent.User.ID != user.ID {
			slog.Warn("Skipping delete of agent owned by another user", "agent_id", id)
			continue
		}
		if agent.State.IsExecuting() {
			slog.Warn("Skipping delete of executing agent", "agent_id", id, "state", agent.State)
			continue
		}
		if agent.ParentAgentID != "" {
			slog.Warn("Skipping delete of child agent; delete the parent instead", "agent_id", id)
			continue
		}
		ids := append([]string{id}, agent.ChildAgents...)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM agent_contexts WHERE agent_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("failed to delete agent contexts: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateFunctions replaces the agent's capability set, skipping names
// the registry does not know.
func (s *AgentStore) UpdateFunctions(ctx context.Context, agentID string, functionNames []string) error {
	resolved := functions.ResolveNames(functionNames)
	now := time.Now().UnixMilli()

	fns, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("failed to marshal function names: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_contexts SET
			last_update = $3,
			doc = doc || jsonb_build_object('functions', $2::jsonb, 'lastUpdate', $3::bigint)
		WHERE agent_id = $1`,
		agentID, string(fns), now)
	if err != nil {
		return fmt.Errorf("failed to update agent functions: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
