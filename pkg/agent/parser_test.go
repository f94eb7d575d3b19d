package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctionCalls(t *testing.T) {
	t.Run("plain JSON object", func(t *testing.T) {
		intents, err := ParseFunctionCalls(
			`{"thinking": "save first", "functionCalls": [{"name": "Agent_saveMemory", "parameters": {"key": "k", "content": "v"}}]}`)
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, "Agent_saveMemory", intents[0].Name)
		assert.Equal(t, "k", intents[0].Parameters["key"])
	})

	t.Run("fenced code block with surrounding prose", func(t *testing.T) {
		text := "Here is my plan.\n```json\n{\"thinking\": \"t\", \"functionCalls\": [{\"name\": \"Agent_completed\", \"parameters\": {\"note\": \"done\"}}]}\n```\nThanks."
		intents, err := ParseFunctionCalls(text)
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, "Agent_completed", intents[0].Name)
	})

	t.Run("braces inside string values do not confuse extraction", func(t *testing.T) {
		intents, err := ParseFunctionCalls(
			`{"thinking": "code is { tricky }", "functionCalls": [{"name": "F", "parameters": {"body": "if x { y }"}}]}`)
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, "if x { y }", intents[0].Parameters["body"])
	})

	t.Run("empty functionCalls is a valid plan", func(t *testing.T) {
		intents, err := ParseFunctionCalls(`{"thinking": "nothing to do", "functionCalls": []}`)
		require.NoError(t, err)
		assert.Empty(t, intents)
	})

	t.Run("no JSON fails", func(t *testing.T) {
		_, err := ParseFunctionCalls("I could not decide what to do.")
		assert.Error(t, err)
	})

	t.Run("malformed JSON fails", func(t *testing.T) {
		_, err := ParseFunctionCalls(`{"thinking": "t", "functionCalls": [{"name": }]}`)
		assert.Error(t, err)
	})

	t.Run("call without a name fails", func(t *testing.T) {
		_, err := ParseFunctionCalls(`{"thinking": "t", "functionCalls": [{"parameters": {}}]}`)
		assert.Error(t, err)
	})
}
