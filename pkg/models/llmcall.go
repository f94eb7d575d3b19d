package models

// LlmCall is the durable record of one LLM interaction. A call that
// exceeds the per-document size ceiling is split across chunk records;
// the head record keeps the metadata and the chunk count, the chunks
// carry message subsets in ascending ChunkIndex order.
type LlmCall struct {
	// ID equals LlmCallID for the head record; chunk records get
	// derived ids.
	ID        string `json:"id"`
	LlmCallID string `json:"llmCallId"`
	// ChunkIndex is 0 (absent) on the head record and 1..ChunkCount on
	// chunk records.
	ChunkIndex int `json:"chunkIndex,omitempty"`
	// ChunkCount is 0 when the call fits a single document.
	ChunkCount int `json:"chunkCount,omitempty"`

	LlmID            string `json:"llmId"`
	Description      string `json:"description,omitempty"`
	RequestTime      int64  `json:"requestTime"`
	TimeToFirstToken int64  `json:"timeToFirstToken,omitempty"`
	TotalTime        int64  `json:"totalTime,omitempty"`

	Cost         float64 `json:"cost,omitempty"`
	InputTokens  int     `json:"inputTokens,omitempty"`
	OutputTokens int     `json:"outputTokens,omitempty"`

	// Messages is the full conversation including the assistant
	// response. Nil on the head record of a chunked call.
	Messages []LlmMessage `json:"messages,omitempty"`

	AgentID   string   `json:"agentId,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	CallStack []string `json:"callStack,omitempty"`
}

// IsHead reports whether the record is a head (not a chunk).
func (c *LlmCall) IsHead() bool { return c.ChunkIndex == 0 }

// CreateLlmCallRequest carries the request-side fields persisted before
// the provider responds.
type CreateLlmCallRequest struct {
	LlmCallID   string       `json:"llmCallId,omitempty"`
	LlmID       string       `json:"llmId"`
	Description string       `json:"description,omitempty"`
	Messages    []LlmMessage `json:"messages"`
	AgentID     string       `json:"agentId,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	CallStack   []string     `json:"callStack,omitempty"`
}
