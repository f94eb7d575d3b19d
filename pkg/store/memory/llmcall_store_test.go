package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/store"
)

// ==== Request / response lifecycle ====

func TestLlmCallStoreLifecycle(t *testing.T) {
	s := NewLlmCallStore()
	ctx := context.Background()

	req := models.CreateLlmCallRequest{
		LlmID:       "anthropic:claude-sonnet",
		Description: "plan-iteration",
		AgentID:     "a1",
		UserID:      "u1",
		Messages: []models.LlmMessage{
			models.TextMessage(models.RoleSystem, "you are an agent"),
			models.TextMessage(models.RoleUser, "do the thing"),
		},
	}

	head, err := s.SaveRequest(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, head.LlmCallID)
	assert.Equal(t, head.LlmCallID, head.ID)
	assert.Greater(t, head.RequestTime, int64(0))

	head.Messages = append(head.Messages, models.TextMessage(models.RoleAssistant, "done"))
	head.TotalTime = 1200
	head.Cost = 0.003
	head.InputTokens = 20
	head.OutputTokens = 5
	require.NoError(t, s.SaveResponse(ctx, head))

	got, err := s.GetCall(ctx, head.LlmCallID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ChunkCount)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "done", got.Messages[2].Text)
	assert.Equal(t, 0.003, got.Cost)
}

// ==== Chunked round trip ====

func TestLlmCallStoreChunking(t *testing.T) {
	s := NewLlmCallStore()
	ctx := context.Background()

	// Two messages of ~0.6x the document ceiling force exactly two
	// chunk documents.
	ratio := 0.6
	size := int(ratio * float64(store.MaxDocSize))
	call := &models.LlmCall{
		ID:          "call-1",
		LlmCallID:   "call-1",
		LlmID:       "openai:gpt-4o",
		RequestTime: 500,
		AgentID:     "a1",
		Messages: []models.LlmMessage{
			models.TextMessage(models.RoleUser, "first "+strings.Repeat("a", size)),
			models.TextMessage(models.RoleAssistant, "second "+strings.Repeat("b", size)),
		},
	}
	require.NoError(t, s.SaveResponse(ctx, call))
	assert.Equal(t, 2, call.ChunkCount)

	t.Run("reassembles messages in order", func(t *testing.T) {
		got, err := s.GetCall(ctx, "call-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.ChunkCount)
		require.Len(t, got.Messages, 2)
		assert.True(t, strings.HasPrefix(got.Messages[0].Text, "first "))
		assert.True(t, strings.HasPrefix(got.Messages[1].Text, "second "))
	})

	t.Run("agent query returns the reassembled call", func(t *testing.T) {
		got, err := s.GetCallsForAgent(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Messages, 2)
	})

	t.Run("oversized single message is unrecoverable", func(t *testing.T) {
		bad := &models.LlmCall{
			ID:        "call-2",
			LlmCallID: "call-2",
			Messages: []models.LlmMessage{
				models.TextMessage(models.RoleUser, strings.Repeat("x", store.MaxDocSize+1)),
			},
		}
		err := s.SaveResponse(ctx, bad)
		require.Error(t, err)
		assert.True(t, store.IsMessageTooLarge(err))
	})

	t.Run("delete removes head and chunks", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "call-1"))
		_, err := s.GetCall(ctx, "call-1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.GetCallsForAgent(ctx, "a1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// ==== Queries ====

func TestLlmCallStoreQueries(t *testing.T) {
	s := NewLlmCallStore()
	ctx := context.Background()

	save := func(id, agentID, description string, requestTime int64) {
		call := &models.LlmCall{
			ID:          id,
			LlmCallID:   id,
			AgentID:     agentID,
			Description: description,
			RequestTime: requestTime,
			Messages:    []models.LlmMessage{models.TextMessage(models.RoleUser, "hi")},
		}
		require.NoError(t, s.SaveResponse(ctx, call))
	}
	save("c1", "a1", "plan", 100)
	save("c2", "a1", "summarize", 300)
	save("c3", "a2", "plan", 200)

	t.Run("calls for agent sorted by recency", func(t *testing.T) {
		got, err := s.GetCallsForAgent(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c2", got[0].LlmCallID)
		assert.Equal(t, "c1", got[1].LlmCallID)
	})

	t.Run("calls by description", func(t *testing.T) {
		got, err := s.GetCallsByDescription(ctx, "plan")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c3", got[0].LlmCallID)
		assert.Equal(t, "c1", got[1].LlmCallID)
	})

	t.Run("delete of a missing call is a no-op", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, "ghost"))
	})
}
