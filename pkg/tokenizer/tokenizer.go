// Package tokenizer estimates prompt sizes for provider selection.
// Counts are approximations: cl100k_base is close enough across
// providers to decide whether a conversation fits a model's window.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/typedai/typedai/pkg/models"
)

// Counter counts tokens with a shared tiktoken encoder.
type Counter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalCounter *Counter
	initOnce      sync.Once
)

// Get returns the singleton counter. Encoder construction is expensive,
// so it happens once; when the encoding data cannot be loaded the
// counter degrades to a chars/4 estimate.
func Get() *Counter {
	initOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			globalCounter = &Counter{encoder: nil}
			return
		}
		globalCounter = &Counter{encoder: tkm}
	})
	return globalCounter
}

// CountText returns the token count for a piece of text.
func (c *Counter) CountText(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// messageOverhead approximates the per-message role and framing cost.
const messageOverhead = 10

// CountMessages estimates the token count of a conversation, including
// per-message framing overhead and tool call payloads.
func (c *Counter) CountMessages(messages []models.LlmMessage) int {
	total := 0
	for _, msg := range messages {
		total += messageOverhead
		total += c.CountText(msg.ContentText())
		for _, call := range msg.ToolCalls {
			total += c.CountText(call.Name)
			total += c.CountText(fmt.Sprintf("%v", call.Parameters))
		}
	}
	return total
}
