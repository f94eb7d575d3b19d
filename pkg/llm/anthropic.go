package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/typedai/typedai/pkg/models"
)

// anthropicMessages is the subset of the SDK client the provider uses;
// satisfied by *sdk.MessageService and by test fakes.
type anthropicMessages interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic is a Claude-backed provider using the Messages API.
type Anthropic struct {
	msg       anthropicMessages
	apiKey    string
	model     string
	maxInput  int
	maxOutput int
}

var _ LLM = (*Anthropic)(nil)

// NewAnthropic builds a provider for the given Claude model. An empty
// API key yields an unconfigured provider that the composite skips.
func NewAnthropic(apiKey, model string, maxInputTokens int) *Anthropic {
	a := &Anthropic{
		apiKey:    apiKey,
		model:     model,
		maxInput:  maxInputTokens,
		maxOutput: 8192,
	}
	if apiKey != "" {
		client := sdk.NewClient(option.WithAPIKey(apiKey))
		a.msg = &client.Messages
	}
	return a
}

func (a *Anthropic) ID() string          { return "anthropic:" + a.model }
func (a *Anthropic) IsConfigured() bool  { return a.apiKey != "" }
func (a *Anthropic) MaxInputTokens() int { return a.maxInput }

// thinkingBudget maps the effort level to a token budget.
func thinkingBudget(level ThinkingLevel) int64 {
	switch level {
	case ThinkingLow:
		return 1024
	case ThinkingMedium:
		return 4096
	case ThinkingHigh:
		return 16384
	}
	return 0
}

// Generate issues a Messages.New request and translates the response.
func (a *Anthropic) Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	if !a.IsConfigured() {
		return nil, fmt.Errorf("%s: provider not configured", a.ID())
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxOutput
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(maxTokens),
	}

	for _, m := range messages {
		text := m.ContentText()
		switch m.Role {
		case models.RoleSystem:
			if text != "" {
				params.System = append(params.System, sdk.TextBlockParam{Text: text})
			}
		case models.RoleAssistant:
			if text != "" {
				params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(text)))
			}
		default:
			// User and tool-result messages both enter as user turns.
			if text != "" {
				params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(text)))
			}
		}
	}
	if len(params.Messages) == 0 {
		return nil, errors.New("at least one user or assistant message is required")
	}

	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = sdk.Float(opts.TopP)
	}
	if k := opts.EffectiveTopK(); k > 0 {
		params.TopK = sdk.Int(int64(k))
	}
	if len(opts.StopSequences) > 0 {
		params.StopSequences = opts.StopSequences
	}
	if budget := thinkingBudget(opts.Thinking); budget > 0 {
		if budget >= int64(maxTokens) {
			params.MaxTokens = budget + int64(maxTokens)
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}

	start := time.Now()
	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(a.ID(), err)
	}

	out := &models.LlmMessage{Role: models.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
			out.Parts = append(out.Parts, models.MessagePart{Type: models.PartText, Text: block.Text})
		case "thinking":
			out.Parts = append(out.Parts, models.MessagePart{Type: models.PartReasoning, Text: block.Thinking})
		case "redacted_thinking":
			out.Parts = append(out.Parts, models.MessagePart{Type: models.PartRedactedReasoning})
		}
	}
	// Single text block needs no parts representation.
	if len(out.Parts) == 1 && out.Parts[0].Type == models.PartText {
		out.Parts = nil
	}

	inTok := int(msg.Usage.InputTokens)
	outTok := int(msg.Usage.OutputTokens)
	out.Stats = &models.GenerationStats{
		RequestTime:  start.UnixMilli(),
		TotalTime:    time.Since(start).Milliseconds(),
		InputTokens:  inTok,
		OutputTokens: outTok,
		Cost:         CostOf(a.model, inTok, outTok),
		LlmID:        a.ID(),
	}

	if msg.StopReason == "max_tokens" {
		return nil, &MaxTokensExceededError{LlmID: a.ID(), Partial: out}
	}
	return out, nil
}

func classifyAnthropicError(id string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429, apiErr.StatusCode == 529, apiErr.StatusCode >= 500:
			return Retryable(fmt.Errorf("%s: %w", id, err))
		}
		return fmt.Errorf("%s: %w", id, err)
	}
	// Transport-level failures are transient.
	return Retryable(fmt.Errorf("%s: %w", id, err))
}
