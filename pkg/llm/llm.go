// Package llm provides a uniform generation surface across providers,
// with cost accounting, retry classification, priority fallback, and a
// recording wrapper that persists every call.
package llm

import (
	"context"

	"github.com/typedai/typedai/pkg/models"
)

// ThinkingLevel selects the reasoning effort for providers that
// support extended thinking.
type ThinkingLevel string

// Thinking levels.
const (
	ThinkingOff    ThinkingLevel = ""
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// maxTopK caps topK across providers; larger values degrade sampling
// quality without benefit.
const maxTopK = 40

// GenerateOptions tunes a single generation call. Zero values mean
// "provider default".
type GenerateOptions struct {
	// ID names the call for spans and the call store description.
	ID string

	Temperature      float64
	TopP             float64
	TopK             int
	FrequencyPenalty float64
	PresencePenalty  float64
	StopSequences    []string

	MaxRetries int
	MaxTokens  int
	Thinking   ThinkingLevel
}

// EffectiveTopK returns TopK clamped to the supported ceiling.
func (o GenerateOptions) EffectiveTopK() int {
	if o.TopK > maxTopK {
		return maxTopK
	}
	return o.TopK
}

// LLM is a single model endpoint or a composite of them.
type LLM interface {
	// Generate produces the next assistant message for the
	// conversation. The returned message carries generation stats.
	Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error)

	// ID identifies the model as "provider:model".
	ID() string

	// IsConfigured reports whether credentials are present.
	IsConfigured() bool

	// MaxInputTokens is the largest input the model accepts.
	MaxInputTokens() int
}
