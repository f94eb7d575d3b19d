package functions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
)

func TestResolveNames(t *testing.T) {
	t.Run("keeps known names in order", func(t *testing.T) {
		got := ResolveNames([]string{AgentSaveMemory, AgentCompleted})
		assert.Equal(t, []string{AgentSaveMemory, AgentCompleted}, got)
	})

	t.Run("skips unknown names", func(t *testing.T) {
		got := ResolveNames([]string{AgentCompleted, "Ghost_tool", AgentDeleteMemory})
		assert.Equal(t, []string{AgentCompleted, AgentDeleteMemory}, got)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, ResolveNames(nil))
	})
}

func TestInstantiate(t *testing.T) {
	fns := Instantiate([]string{AgentSaveMemory, "nope", AgentSetLiveFiles})
	require.Len(t, fns, 2)
	assert.Equal(t, AgentSaveMemory, fns[0].Schema().Name)
	assert.Equal(t, AgentSetLiveFiles, fns[1].Schema().Name)
}

func TestBuiltinMemoryFunctions(t *testing.T) {
	agent := &models.AgentContext{AgentID: "a1", User: models.User{ID: "u1"}}
	ctx := scope.WithAgent(context.Background(), agent)

	save, ok := Get(AgentSaveMemory)
	require.True(t, ok)
	_, err := save.Call(ctx, map[string]any{"key": "plan", "content": "step one"})
	require.NoError(t, err)
	assert.Equal(t, "step one", agent.Memory["plan"])

	del, ok := Get(AgentDeleteMemory)
	require.True(t, ok)
	_, err = del.Call(ctx, map[string]any{"key": "plan"})
	require.NoError(t, err)
	assert.NotContains(t, agent.Memory, "plan")

	t.Run("fails without an agent binding", func(t *testing.T) {
		_, err := save.Call(context.Background(), map[string]any{"key": "k", "content": "v"})
		assert.Error(t, err)
	})

	t.Run("missing parameters are rejected", func(t *testing.T) {
		_, err := save.Call(ctx, map[string]any{"key": "k"})
		assert.Error(t, err)
	})
}

func TestSetLiveFiles(t *testing.T) {
	agent := &models.AgentContext{AgentID: "a1"}
	ctx := scope.WithAgent(context.Background(), agent)

	fn, ok := Get(AgentSetLiveFiles)
	require.True(t, ok)

	// JSON decoding delivers lists as []any.
	_, err := fn.Call(ctx, map[string]any{"files": []any{"main.go", "go.mod"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "go.mod"}, agent.LiveFiles)
}

func TestSchemaPromptBlock(t *testing.T) {
	block := completedFn{}.Schema().PromptBlock()
	assert.Contains(t, block, `<function name="Agent_completed">`)
	assert.Contains(t, block, `<parameter name="note"`)
	assert.Contains(t, block, "required")
}
