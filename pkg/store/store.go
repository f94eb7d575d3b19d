// Package store defines the durable repository interfaces consumed by
// the runtime, plus the chunking rules every adapter must honor. Two
// adapters exist: an in-memory one and a Postgres document store,
// selected at boot via the DATABASE environment variable.
package store

import (
	"context"

	"github.com/typedai/typedai/pkg/models"
)

// AgentStateStore persists agent contexts and their parent/child links.
type AgentStateStore interface {
	// Save writes the full context. When ParentAgentID is set, the
	// parent is read, the child id is added to its ChildAgents, and
	// both records are written in one transaction; a missing parent
	// fails with ErrParentMissing.
	Save(ctx context.Context, agent *models.AgentContext) error

	// UpdateState writes only the state and lastUpdate fields, then
	// mutates the in-memory context.
	UpdateState(ctx context.Context, agent *models.AgentContext, state models.AgentState) error

	// Load returns the full context, or ErrNotFound.
	Load(ctx context.Context, agentID string) (*models.AgentContext, error)

	// List returns the current user's agents, ordered by lastUpdate
	// descending.
	List(ctx context.Context) ([]models.AgentContextSummary, error)

	// ListRunning returns the current user's non-terminal agents,
	// ordered by (state asc, lastUpdate desc). The state-first order is
	// imposed by document-store inequality-filter rules and preserved
	// for portability; callers needing strict recency sort client-side.
	ListRunning(ctx context.Context) ([]models.AgentContextSummary, error)

	// Delete removes the given agents and their children. Agents not
	// owned by the current user, in an executing state, or having a
	// parent are skipped.
	Delete(ctx context.Context, agentIDs []string) error

	// UpdateFunctions replaces the agent's capability set. Names absent
	// from the function registry are skipped with a warning.
	UpdateFunctions(ctx context.Context, agentID string, functionNames []string) error
}

// LlmCallStore is the durable record of every LLM interaction. Writes
// transparently split oversized message arrays across chunk documents;
// reads reassemble them.
type LlmCallStore interface {
	// SaveRequest persists the request side of a call and returns the
	// head record (with generated ids and request time).
	SaveRequest(ctx context.Context, req models.CreateLlmCallRequest) (*models.LlmCall, error)

	// SaveResponse persists the completed call, chunking the messages
	// when they exceed the document ceiling. Merge semantics on the
	// head, overwrite on chunks.
	SaveResponse(ctx context.Context, call *models.LlmCall) error

	// GetCall loads and reassembles a call by id. A chunk-count
	// mismatch is logged and the reconstruction returned as-is.
	GetCall(ctx context.Context, llmCallID string) (*models.LlmCall, error)

	// GetCallsForAgent returns reassembled head records for an agent,
	// sorted by requestTime descending.
	GetCallsForAgent(ctx context.Context, agentID string) ([]*models.LlmCall, error)

	// GetCallsByDescription returns reassembled head records matching
	// the description, sorted by requestTime descending.
	GetCallsByDescription(ctx context.Context, description string) ([]*models.LlmCall, error)

	// Delete removes the head and all chunks of a call in one batch.
	Delete(ctx context.Context, llmCallID string) error
}

// CodeReviewConfigStore persists review rules.
type CodeReviewConfigStore interface {
	List(ctx context.Context) ([]models.CodeReviewConfig, error)
	Get(ctx context.Context, id string) (*models.CodeReviewConfig, error)
	Save(ctx context.Context, cfg *models.CodeReviewConfig) error
	Delete(ctx context.Context, id string) error
}

// ReviewCacheStore persists the per-MR fingerprint caches.
type ReviewCacheStore interface {
	// Get returns the cache for the MR; an absent or malformed document
	// yields a fresh empty cache, never an error.
	Get(ctx context.Context, projectID string, mrIID int64) (*models.MergeRequestFingerprintCache, error)

	// Update overwrites the cache document and stamps lastUpdated.
	Update(ctx context.Context, projectID string, mrIID int64, cache *models.MergeRequestFingerprintCache) error
}

// Stores bundles the four repositories selected at boot.
type Stores struct {
	Agents        AgentStateStore
	LlmCalls      LlmCallStore
	ReviewConfigs CodeReviewConfigStore
	ReviewCaches  ReviewCacheStore
}
