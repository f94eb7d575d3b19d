package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typedai/typedai/pkg/models"
)

// fakeLLM is a scriptable provider for chain tests.
type fakeLLM struct {
	id           string
	configured   bool
	maxInput     int
	resp         *models.LlmMessage
	err          error
	calls        int
	lastMessages []models.LlmMessage
}

func (f *fakeLLM) ID() string          { return f.id }
func (f *fakeLLM) IsConfigured() bool  { return f.configured }
func (f *fakeLLM) MaxInputTokens() int { return f.maxInput }

func (f *fakeLLM) Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// bigInput builds a conversation of roughly n tokens.
func bigInput(n int) []models.LlmMessage {
	return []models.LlmMessage{
		models.TextMessage(models.RoleUser, strings.Repeat("word ", n)),
	}
}

func TestCompositeFallback(t *testing.T) {
	t.Run("skips unconfigured and over-limit providers", func(t *testing.T) {
		p1 := &fakeLLM{id: "p1", configured: false, maxInput: 100_000}
		p2 := &fakeLLM{id: "p2", configured: true, maxInput: 1000}
		p3 := &fakeLLM{id: "p3", configured: true, maxInput: 100_000,
			resp: &models.LlmMessage{Role: models.RoleAssistant, Text: "ok"}}
		c := NewComposite(p1, p2, p3)

		msg, err := c.Generate(context.Background(), bigInput(2000), GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ok", msg.Text)
		assert.Equal(t, 0, p1.calls)
		assert.Equal(t, 0, p2.calls)
		assert.Equal(t, 1, p3.calls)
	})

	t.Run("exhausted chain fails with AllProvidersFailed", func(t *testing.T) {
		p1 := &fakeLLM{id: "p1", configured: false}
		p2 := &fakeLLM{id: "p2", configured: true, maxInput: 1000}
		p3 := &fakeLLM{id: "p3", configured: true, maxInput: 100_000,
			err: errors.New("boom")}
		c := NewComposite(p1, p2, p3)

		_, err := c.Generate(context.Background(), bigInput(2000), GenerateOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAllProvidersFailed)
		assert.Equal(t, 1, p3.calls)
	})

	t.Run("falls through provider errors in order", func(t *testing.T) {
		p1 := &fakeLLM{id: "p1", configured: true, maxInput: 100_000, err: errors.New("down")}
		p2 := &fakeLLM{id: "p2", configured: true, maxInput: 100_000,
			resp: &models.LlmMessage{Role: models.RoleAssistant, Text: "second"}}
		c := NewComposite(p1, p2)

		msg, err := c.Generate(context.Background(), bigInput(10), GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "second", msg.Text)
		assert.Equal(t, 1, p1.calls)
	})

	t.Run("isConfigured requires every provider", func(t *testing.T) {
		assert.False(t, NewComposite().IsConfigured())
		assert.False(t, NewComposite(
			&fakeLLM{configured: true}, &fakeLLM{configured: false}).IsConfigured())
		assert.True(t, NewComposite(
			&fakeLLM{configured: true}, &fakeLLM{configured: true}).IsConfigured())
	})

	t.Run("maxInputTokens is the maximum across providers", func(t *testing.T) {
		c := NewComposite(
			&fakeLLM{maxInput: 1000},
			&fakeLLM{maxInput: 200_000},
			&fakeLLM{maxInput: 64_000})
		assert.Equal(t, 200_000, c.MaxInputTokens())
	})
}

func TestGenerateWithRetry(t *testing.T) {
	msgs := bigInput(5)

	t.Run("returns first success", func(t *testing.T) {
		p := &fakeLLM{id: "p", configured: true,
			resp: &models.LlmMessage{Role: models.RoleAssistant, Text: "ok"}}
		msg, err := GenerateWithRetry(context.Background(), p, msgs, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ok", msg.Text)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("non-retryable errors surface immediately", func(t *testing.T) {
		p := &fakeLLM{id: "p", configured: true, err: errors.New("bad request")}
		_, err := GenerateWithRetry(context.Background(), p, msgs, GenerateOptions{MaxRetries: 5})
		require.Error(t, err)
		assert.Equal(t, 1, p.calls)
	})

	t.Run("cancellation stops the retry loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &fakeLLM{id: "p", configured: true, err: Retryable(errors.New("rate limited"))}
		_, err := GenerateWithRetry(ctx, p, msgs, GenerateOptions{MaxRetries: 3})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, p.calls)
	})
}

func TestTopKClamp(t *testing.T) {
	assert.Equal(t, 40, GenerateOptions{TopK: 100}.EffectiveTopK())
	assert.Equal(t, 10, GenerateOptions{TopK: 10}.EffectiveTopK())
	assert.Equal(t, 0, GenerateOptions{}.EffectiveTopK())
}

func TestCostOf(t *testing.T) {
	assert.InDelta(t, 3.0/1e6*1000+15.0/1e6*500, CostOf("claude-sonnet-4-5", 1000, 500), 1e-9)
	assert.Equal(t, 0.0, CostOf("unknown-model", 1000, 500))
	// Longest prefix wins for the mini variant.
	assert.InDelta(t, 0.15/1e6*1000, CostOf("gpt-4o-mini", 1000, 0), 1e-9)
}
