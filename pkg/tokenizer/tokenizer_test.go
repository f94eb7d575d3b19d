package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/typedai/typedai/pkg/models"
)

func TestCountText(t *testing.T) {
	c := Get()

	assert.Equal(t, 0, c.CountText(""))
	assert.Greater(t, c.CountText("hello world"), 0)

	short := c.CountText("hi")
	long := c.CountText("This is a longer piece of text that should produce more tokens.")
	assert.Greater(t, long, short)
}

func TestCountMessages(t *testing.T) {
	c := Get()

	msgs := []models.LlmMessage{
		models.TextMessage(models.RoleSystem, "you are a coding agent"),
		models.TextMessage(models.RoleUser, "refactor the parser"),
	}
	count := c.CountMessages(msgs)
	// Two messages of framing overhead plus content.
	assert.Greater(t, count, 2*messageOverhead)

	withTool := append(msgs, models.LlmMessage{
		Role: models.RoleAssistant,
		ToolCalls: []models.FunctionCallIntent{
			{Name: "FileSystem_readFile", Parameters: map[string]any{"path": "main.go"}},
		},
	})
	assert.Greater(t, c.CountMessages(withTool), count)
}

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
