package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/typedai/typedai/pkg/models"
)

const (
	defaultMaxRetries = 3
	baseBackoff       = 2 * time.Second
	maxBackoff        = 60 * time.Second
)

// GenerateWithRetry calls l.Generate, retrying transient failures with
// exponential backoff. Non-retryable errors and context cancellation
// surface immediately.
func GenerateWithRetry(ctx context.Context, l LLM, messages []models.LlmMessage, opts GenerateOptions) (*models.LlmMessage, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			slog.Warn("Retrying LLM call",
				"llm_id", l.ID(), "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		msg, err := l.Generate(ctx, messages, opts)
		if err == nil {
			return msg, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
