package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typedai/typedai/pkg/models"
)

// textOfSize builds a user message whose serialized form is close to n
// bytes. The JSON envelope of a bare text message is small and
// accounted for by the caller's margin.
func textOfSize(n int) models.LlmMessage {
	return models.TextMessage(models.RoleUser, strings.Repeat("a", n))
}

func TestPlanChunks(t *testing.T) {
	t.Run("small conversation needs no chunking", func(t *testing.T) {
		msgs := []models.LlmMessage{
			models.TextMessage(models.RoleSystem, "be helpful"),
			models.TextMessage(models.RoleUser, "hello"),
		}
		chunks, err := PlanChunks(msgs)
		require.NoError(t, err)
		assert.Nil(t, chunks)
	})

	t.Run("single message at capacity fits one chunk", func(t *testing.T) {
		// Leave margin for the JSON field envelope.
		big := textOfSize(ChunkCapacity - 64)
		over := textOfSize(ChunkCapacity / 2)
		chunks, err := PlanChunks([]models.LlmMessage{big, over})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 1)
		assert.Len(t, chunks[1], 1)
	})

	t.Run("single message over capacity fails", func(t *testing.T) {
		over := textOfSize(ChunkCapacity + 1)
		_, err := PlanChunks([]models.LlmMessage{over})
		require.Error(t, err)
		assert.True(t, IsMessageTooLarge(err))
	})

	t.Run("two 0.6x messages produce exactly two chunks", func(t *testing.T) {
		ratio := 0.6
		size := int(ratio * float64(MaxDocSize))
		msgs := []models.LlmMessage{textOfSize(size), textOfSize(size)}
		chunks, err := PlanChunks(msgs)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 1)
		assert.Len(t, chunks[1], 1)
	})

	t.Run("order is preserved across chunks", func(t *testing.T) {
		ratio := 0.4
		size := int(ratio * float64(MaxDocSize))
		msgs := []models.LlmMessage{
			models.TextMessage(models.RoleUser, "first"+strings.Repeat("a", size)),
			models.TextMessage(models.RoleAssistant, "second"+strings.Repeat("b", size)),
			models.TextMessage(models.RoleUser, "third"+strings.Repeat("c", size)),
		}
		chunks, err := PlanChunks(msgs)
		require.NoError(t, err)

		var flat []models.LlmMessage
		for _, c := range chunks {
			flat = append(flat, c...)
		}
		require.Len(t, flat, 3)
		for i, msg := range flat {
			assert.Equal(t, msgs[i].Text, msg.Text, "message %d out of order", i)
		}
	})
}

func TestReviewCacheDocID(t *testing.T) {
	tests := []struct {
		name      string
		projectID string
		mrIID     int64
		want      string
	}{
		{"numeric id unchanged", "123", 101, "proj_123_mr_101"},
		{"path with unsafe chars sanitized", "group/project name!", 101, "proj_group_project_name__mr_101"},
		{"already safe", "my-project_1", 7, "proj_my-project_1_mr_7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReviewCacheDocID(tt.projectID, tt.mrIID))
		})
	}
}
