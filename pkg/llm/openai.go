package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/typedai/typedai/pkg/models"
)

// openaiChat is the subset of the go-openai client the provider uses.
type openaiChat interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompatible serves every Chat Completions endpoint: OpenAI
// itself plus DeepSeek, Groq, OpenRouter, SambaNova, and Perplexity,
// which differ only in base URL and model catalogue.
type OpenAICompatible struct {
	chat     openaiChat
	provider string
	apiKey   string
	model    string
	maxInput int
}

var _ LLM = (*OpenAICompatible)(nil)

// NewOpenAICompatible builds a provider. baseURL is empty for OpenAI
// proper. An empty API key yields an unconfigured provider.
func NewOpenAICompatible(provider, apiKey, baseURL, model string, maxInputTokens int) *OpenAICompatible {
	p := &OpenAICompatible{
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		maxInput: maxInputTokens,
	}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		p.chat = openai.NewClientWithConfig(cfg)
	}
	return p
}

func (p *OpenAICompatible) ID() string          { return p.provider + ":" + p.model }
func (p *OpenAICompatible) IsConfigured() bool  { return p.apiKey != "" }
func (p *OpenAICompatible) MaxInputTokens() int { return p.maxInput }

// Generate issues a chat completion and translates the response.
func (p *OpenAICompatible) Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%s: provider not configured", p.ID())
	}

	req := openai.ChatCompletionRequest{
		Model:            p.model,
		Temperature:      float32(opts.Temperature),
		TopP:             float32(opts.TopP),
		FrequencyPenalty: float32(opts.FrequencyPenalty),
		PresencePenalty:  float32(opts.PresencePenalty),
		Stop:             opts.StopSequences,
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}
	for _, m := range messages {
		text := m.ContentText()
		if text == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	start := time.Now()
	resp, err := p.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(p.ID(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response contained no choices", p.ID())
	}

	choice := resp.Choices[0]
	out := &models.LlmMessage{
		Role: models.RoleAssistant,
		Text: choice.Message.Content,
	}
	if choice.Message.ReasoningContent != "" {
		out.Parts = []models.MessagePart{
			{Type: models.PartReasoning, Text: choice.Message.ReasoningContent},
			{Type: models.PartText, Text: choice.Message.Content},
		}
	}
	out.Stats = &models.GenerationStats{
		RequestTime:  start.UnixMilli(),
		TotalTime:    time.Since(start).Milliseconds(),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Cost:         CostOf(p.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LlmID:        p.ID(),
	}

	if choice.FinishReason == openai.FinishReasonLength {
		return nil, &MaxTokensExceededError{LlmID: p.ID(), Partial: out}
	}
	return out, nil
}

func classifyOpenAIError(id string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429, apiErr.HTTPStatusCode >= 500:
			return Retryable(fmt.Errorf("%s: %w", id, err))
		}
		return fmt.Errorf("%s: %w", id, err)
	}
	return Retryable(fmt.Errorf("%s: %w", id, err))
}
