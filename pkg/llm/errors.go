package llm

import (
	"errors"
	"fmt"

	"github.com/typedai/typedai/pkg/models"
)

// ErrAllProvidersFailed is returned by the composite LLM when every
// provider in the list was skipped or failed.
var ErrAllProvidersFailed = errors.New("all LLM providers failed")

// RetryableError wraps a transient provider failure (rate limit,
// overload, transport) so retry loops can detect it.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable LLM error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as transient.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable checks for a RetryableError in the chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// MaxTokensExceededError reports truncated output. It carries the
// partial assistant message so callers can replay or salvage it.
type MaxTokensExceededError struct {
	LlmID   string
	Partial *models.LlmMessage
}

func (e *MaxTokensExceededError) Error() string {
	return fmt.Sprintf("%s: response truncated at max output tokens", e.LlmID)
}

// IsMaxTokensExceeded extracts a MaxTokensExceededError from the chain.
func IsMaxTokensExceeded(err error) (*MaxTokensExceededError, bool) {
	var mte *MaxTokensExceededError
	if errors.As(err, &mte) {
		return mte, true
	}
	return nil, false
}
