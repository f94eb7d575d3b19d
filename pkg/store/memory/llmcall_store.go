package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// LlmCallStore is the in-memory LlmCallStore. Records are keyed by
// document id, so a chunked call occupies one head entry plus one entry
// per chunk, exactly like the document store.
type LlmCallStore struct {
	mu    sync.RWMutex
	calls map[string]*models.LlmCall
}

// NewLlmCallStore creates an empty call store.
func NewLlmCallStore() *LlmCallStore {
	return &LlmCallStore{calls: make(map[string]*models.LlmCall)}
}

var _ store.LlmCallStore = (*LlmCallStore)(nil)

// SaveRequest persists the request side of a call. The request messages
// are small enough in practice to fit a single document; chunking is
// applied on the response write where the full conversation lands.
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
	if err := s.write(call); err != nil {
		return nil, err
	}
	return call, nil
}

// SaveResponse persists the completed call, splitting the messages
// across chunk documents when they exceed the document ceiling.
func (s *LlmCallStore) SaveResponse(ctx context.Context, call *models.LlmCall) error {
	return s.write(call)
}

// write stores the call, chunking when needed. Any chunks of a previous
// write of the same call id are removed first so shrinking calls do not
// leave stale tails.
func (s *LlmCallStore) write(call *models.LlmCall) error {
	chunks, err := store.PlanChunks(call.Messages)
	if err != nil {
		return err
	}

	head, err := clone(call)
	if err != nil {
		return err
	}
	head.ID = call.LlmCallID

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.calls[call.LlmCallID]; ok {
		for i := 1; i <= prev.ChunkCount; i++ {
			delete(s.calls, store.ChunkDocID(call.LlmCallID, i))
		}
	}

	if chunks == nil {
		head.ChunkCount = 0
		s.calls[head.ID] = head
		call.ChunkCount = 0
		return nil
	}

	head.ChunkCount = len(chunks)
	head.Messages = nil
	s.calls[head.ID] = head

	for i, msgs := range chunks {
		chunk, err := clone(&models.LlmCall{
			ID:         store.ChunkDocID(call.LlmCallID, i+1),
			LlmCallID:  call.LlmCallID,
			ChunkIndex: i + 1,
			ChunkCount: len(chunks),
			Messages:   msgs,
		})
		if err != nil {
			return err
		}
		s.calls[chunk.ID] = chunk
	}
	call.ChunkCount = len(chunks)
	return nil
}

// GetCall loads and reassembles a call by id.
func (s *LlmCallStore) GetCall(ctx context.Context, llmCallID string) (*models.LlmCall, error) {
	s.mu.RLock()
	head, ok := s.calls[llmCallID]
	var chunks []*models.LlmCall
	if ok && head.ChunkCount > 0 {
		for i := 1; i <= head.ChunkCount; i++ {
			if c, found := s.calls[store.ChunkDocID(llmCallID, i)]; found {
				chunks = append(chunks, c)
			}
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}
	return reassemble(head, chunks)
}

// GetCallsForAgent returns reassembled calls for an agent, most recent
// first.
func (s *LlmCallStore) GetCallsForAgent(ctx context.Context, agentID string) ([]*models.LlmCall, error) {
	return s.query(func(c *models.LlmCall) bool { return c.AgentID == agentID })
}

// GetCallsByDescription returns reassembled calls matching the
// description, most recent first.
func (s *LlmCallStore) GetCallsByDescription(ctx context.Context, description string) ([]*models.LlmCall, error) {
	return s.query(func(c *models.LlmCall) bool { return c.Description == description })
}

func (s *LlmCallStore) query(match func(*models.LlmCall) bool) ([]*models.LlmCall, error) {
	s.mu.RLock()
	var heads []*models.LlmCall
	for _, c := range s.calls {
		if c.IsHead() && match(c) {
			heads = append(heads, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(heads, func(i, j int) bool { return heads[i].RequestTime > heads[j].RequestTime })

	out := make([]*models.LlmCall, 0, len(heads))
	for _, head := range heads {
		call, err := s.GetCall(context.Background(), head.LlmCallID)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, nil
}

// Delete removes the head and all chunks of a call.
func (s *LlmCallStore) Delete(ctx context.Context, llmCallID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.calls[llmCallID]
	if !ok {
		return nil
	}
	for i := 1; i <= head.ChunkCount; i++ {
		delete(s.calls, store.ChunkDocID(llmCallID, i))
	}
	delete(s.calls, llmCallID)
	return nil
}

// reassemble merges chunk messages back into a copy of the head record,
// in ascending chunk index order. A chunk-count mismatch is logged and
// the partial reconstruction returned.
func reassemble(head *models.LlmCall, chunks []*models.LlmCall) (*models.LlmCall, error) {
	out, err := clone(head)
	if err != nil {
		return nil, err
	}
	if head.ChunkCount == 0 {
		return out, nil
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	if len(chunks) != head.ChunkCount {
		slog.Warn("LLM call chunk count mismatch",
			"llm_call_id", head.LlmCallID,
			"expected", head.ChunkCount,
			"found", len(chunks))
	}

	out.Messages = nil
	for _, c := range chunks {
		out.Messages = append(out.Messages, c.Messages...)
	}
	return out, nil
}
