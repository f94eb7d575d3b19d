package llm

import (
	"context"
	"log/slog"

	"github.com/typedai/typedai/pkg/masking"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
	"github.com/typedai/typedai/pkg/trace"
)

// Recorder wraps an LLM and persists every call to the call store.
// Persisted conversations pass through the credential masker; the live
// messages sent to the provider do not. Store failures are logged and
// never mask the generation outcome.
type Recorder struct {
	inner  LLM
	calls  store.LlmCallStore
	masker *masking.Masker
}

var _ LLM = (*Recorder)(nil)

// NewRecorder wraps inner with call persistence.
func NewRecorder(inner LLM, calls store.LlmCallStore) *Recorder {
	return &Recorder{inner: inner, calls: calls, masker: masking.NewMasker()}
}

func (r *Recorder) ID() string          { return r.inner.ID() }
func (r *Recorder) IsConfigured() bool  { return r.inner.IsConfigured() }
func (r *Recorder) MaxInputTokens() int { return r.inner.MaxInputTokens() }

// Generate persists the request, delegates, then persists the full
// conversation including the assistant response.
func (r *Recorder) Generate(ctx context.Context, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	req := models.CreateLlmCallRequest{
		LlmID:       r.inner.ID(),
		Description: opts.ID,
		Messages:    r.masker.MaskMessages(messages),
	}
	if agent := scope.CurrentAgent(ctx); agent != nil {
		req.AgentID = agent.AgentID
		req.UserID = agent.User.ID
		req.CallStack = agent.CallStack
	} else if user, err := scope.CurrentUser(ctx); err == nil {
		req.UserID = user.ID
	}

	head, saveErr := r.calls.SaveRequest(ctx, req)
	if saveErr != nil {
		slog.Error("Failed to persist LLM request", "llm_id", r.inner.ID(), "error", saveErr)
	}

	var msg *models.LlmMessage
	err := trace.WithSpan(ctx, "llm.generate", func(ctx context.Context) error {
		var genErr error
		msg, genErr = r.inner.Generate(ctx, messages, opts)
		return genErr
	}, trace.String("llm.id", r.inner.ID()), trace.String("call.description", opts.ID))

	// A truncated response still carries a partial message worth
	// recording.
	recorded := msg
	if recorded == nil {
		if mte, ok := IsMaxTokensExceeded(err); ok {
			recorded = mte.Partial
		}
	}
	if head != nil && recorded != nil {
		head.Messages = append(r.masker.MaskMessages(messages), r.masker.MaskMessage(*recorded))
		if stats := recorded.Stats; stats != nil {
			head.LlmID = stats.LlmID
			head.TimeToFirstToken = stats.TimeToFirstToken
			head.TotalTime = stats.TotalTime
			head.Cost = stats.Cost
			head.InputTokens = stats.InputTokens
			head.OutputTokens = stats.OutputTokens
		}
		if saveErr := r.calls.SaveResponse(ctx, head); saveErr != nil {
			slog.Error("Failed to persist LLM response",
				"llm_id", r.inner.ID(), "llm_call_id", head.LlmCallID, "error", saveErr)
		}
	}
	return msg, err
}
