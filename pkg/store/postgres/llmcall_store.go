package postgres

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// LlmCallStore is the PostgreSQL LlmCallStore. A chunked call occupies
// one head row plus one row per chunk, all sharing llm_call_id.
type LlmCallStore struct {
	db *stdsql.DB
}

var _ store.LlmCallStore = (*LlmCallStore)(nil)

const upsertCallSQL = `
	INSERT INTO llm_calls (id, llm_call_id, chunk_index, agent_id, user_id, description, request_time, doc)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		agent_id = EXCLUDED.agent_id,
		user_id = EXCLUDED.user_id,
		description = EXCLUDED.description,
		request_time = EXCLUDED.request_time,
		doc = EXCLUDED.doc`

// SaveRequest persists the request side of a call and returns the head
// record with generated ids and request time.
func (s *LlmCallStore) SaveRequest(ctx context.Context, req models.CreateLlmCallRequest) (*models.LlmCall, error) {
	id := req.LlmCallID
	if id == "" {
		id = uuid.NewString()
	}
	call := &models.LlmCall{
		ID:          id,
		LlmCallID:   id,
		LlmID:       req.LlmID,
		Description: req.Description,
		RequestTime: time.Now().UnixMilli(),
		Messages:    req.Messages,
		AgentID:     req.AgentID,
		UserID:      req.UserID,
		CallStack:   req.CallStack,
	}
	if err := s.write(ctx, call); err != nil {
		return nil, err
	}
	return call, nil
}

// SaveResponse persists the completed call, splitting the messages
// across chunk rows when they exceed the document ceiling.
func (s *LlmCallStore) SaveResponse(ctx context.Context, call *models.LlmCall) error {
	return s.write(ctx, call)
}

func (s *LlmCallStore) write(ctx context.Context, call *models.LlmCall) error {
	chunks, err := store.PlanChunks(call.Messages)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Drop chunks of any previous write so shrinking calls do not leave
	// stale tails.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM llm_calls WHERE llm_call_id = $1 AND chunk_index > 0`, call.LlmCallID); err != nil {
		return fmt.Errorf("failed to clear stale chunks: %w", err)
	}

	head := *call
	head.ID = call.LlmCallID
	head.ChunkIndex = 0
	if chunks == nil {
		head.ChunkCount = 0
	} else {
		head.ChunkCount = len(chunks)
		head.Messages = nil
	}
	if err := upsertCallTx(ctx, tx, &head); err != nil {
		return err
	}

	for i, msgs := range chunks {
		chunk := models.LlmCall{
			ID:         store.ChunkDocID(call.LlmCallID, i+1),
			LlmCallID:  call.LlmCallID,
			ChunkIndex: i + 1,
			ChunkCount: len(chunks),
			Messages:   msgs,
		}
		if err := upsertCallTx(ctx, tx, &chunk); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit llm call: %w", err)
	}
	call.ChunkCount = head.ChunkCount
	return nil
}

func upsertCallTx(ctx context.Context, tx *stdsql.Tx, call *models.LlmCall) error {
	doc, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal llm call: %w", err)
	}
	_, err = tx.ExecContext(ctx, upsertCallSQL,
		call.ID, call.LlmCallID, call.ChunkIndex, call.AgentID, call.UserID,
		call.Description, call.RequestTime, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert llm call: %w", err)
	}
	return nil
}

// GetCall loads and reassembles a call by id.
func (s *LlmCallStore) GetCall(ctx context.Context, llmCallID string) (*models.LlmCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM llm_calls
		WHERE llm_call_id = $1
		ORDER BY chunk_index ASC`, llmCallID)
	if err != nil {
		return nil, fmt.Errorf("failed to query llm call: %w", err)
	}
	defer rows.Close()

	var head *models.LlmCall
	var chunks []*models.LlmCall
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan llm call: %w", err)
		}
		var call models.LlmCall
		if err := json.Unmarshal(doc, &call); err != nil {
			return nil, fmt.Errorf("failed to unmarshal llm call: %w", err)
		}
		if call.IsHead() {
			head = &call
		} else {
			chunks = append(chunks, &call)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if head == nil {
		return nil, store.ErrNotFound
	}
	return reassemble(head, chunks), nil
}

// GetCallsForAgent returns reassembled calls for an agent, most recent
// first.
func (s *LlmCallStore) GetCallsForAgent(ctx context.Context, agentID string) ([]*models.LlmCall, error) {
	return s.query(ctx, `
		SELECT llm_call_id FROM llm_calls
		WHERE agent_id = $1 AND chunk_index = 0
		ORDER BY request_time DESC`, agentID)
}

// GetCallsByDescription returns reassembled calls matching the
// description, most recent first.
func (s *LlmCallStore) GetCallsByDescription(ctx context.Context, description string) ([]*models.LlmCall, error) {
	return s.query(ctx, `
		SELECT llm_call_id FROM llm_calls
		WHERE description = $1 AND chunk_index = 0
		ORDER BY request_time DESC`, description)
}

func (s *LlmCallStore) query(ctx context.Context, sql string, arg any) ([]*models.LlmCall, error) {
	rows, err := s.db.QueryContext(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query llm calls: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan llm call id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]*models.LlmCall, 0, len(ids))
	for _, id := range ids {
		call, err := s.GetCall(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, call)
	}
	return out, nil
}

// Delete removes the head and all chunks of a call in one statement.
func (s *LlmCallStore) Delete(ctx context.Context, llmCallID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_calls WHERE llm_call_id = $1`, llmCallID)
	if err != nil {
		return fmt.Errorf("failed to delete llm call: %w", err)
	}
	return nil
}

// reassemble merges chunk messages into the head record in ascending
// chunk index order. A chunk-count mismatch is logged and the partial
// reconstruction returned.
func reassemble(head *models.LlmCall, chunks []*models.LlmCall) *models.LlmCall {
	if head.ChunkCount == 0 {
		return head
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	if len(chunks) != head.ChunkCount {
		slog.Warn("LLM call chunk count mismatch",
			"llm_call_id", head.LlmCallID,
			"expected", head.ChunkCount,
			"found", len(chunks))
	}
	head.Messages = nil
	for _, c := range chunks {
		head.Messages = append(head.Messages, c.Messages...)
	}
	return head
}
