package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/tokenizer"
)

// Composite walks an ordered provider list. A provider is skipped when
// it is unconfigured or the estimated input exceeds its window; a
// provider error logs and falls through to the next. Only an exhausted
// list fails.
type Composite struct {
	providers []LLM
}

var _ LLM = (*Composite)(nil)

// NewComposite builds a fallback chain in priority order.
func NewComposite(providers ...LLM) *Composite {
	return &Composite{providers: providers}
}

// ID joins the chain's provider ids.
func (c *Composite) ID() string {
	ids := make([]string, len(c.providers))
	for i, p := range c.providers {
		ids[i] = p.ID()
	}
	return "fallback(" + strings.Join(ids, ",") + ")"
}

// IsConfigured is true only when every provider is configured.
func (c *Composite) IsConfigured() bool {
	for _, p := range c.providers {
		if !p.IsConfigured() {
			return false
		}
	}
	return len(c.providers) > 0
}

// MaxInputTokens is the maximum across providers.
func (c *Composite) MaxInputTokens() int {
	max := 0
	for _, p := range c.providers {
		if p.MaxInputTokens() > max {
			max = p.MaxInputTokens()
		}
	}
	return max
}

// Generate tries each provider in order.
func (c *Composite) Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	inputTokens := tokenizer.Get().CountMessages(messages)

	var lastErr error
	for _, p := range c.providers {
		if !p.IsConfigured() {
			slog.Debug("Skipping unconfigured LLM provider", "llm_id", p.ID())
			continue
		}
		if limit := p.MaxInputTokens(); limit > 0 && inputTokens > limit {
			slog.Debug("Skipping LLM provider over input token limit",
				"llm_id", p.ID(), "input_tokens", inputTokens, "max_input_tokens", limit)
			continue
		}

		msg, err := p.Generate(ctx, messages, opts)
		if err != nil {
			slog.Warn("LLM provider failed, falling through",
				"llm_id", p.ID(), "error", err)
			lastErr = err
			continue
		}
		return msg, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %w", ErrAllProvidersFailed, lastErr)
	}
	return nil, ErrAllProvidersFailed
}
