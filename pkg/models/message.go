package models

// Role identifies the author of a conversation message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags the kind of a message content part.
type PartType string

// Content part kinds.
const (
	PartText              PartType = "text"
	PartImage             PartType = "image"
	PartFile              PartType = "file"
	PartReasoning         PartType = "reasoning"
	PartRedactedReasoning PartType = "redacted-reasoning"
)

// MessagePart is one element of a multi-part message content.
type MessagePart struct {
	Type PartType `json:"type"`
	// Text carries the content for text and reasoning parts.
	Text string `json:"text,omitempty"`
	// Data carries base64 payloads for image and file parts.
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// GenerationStats records timing, token, and cost figures for the LLM
// call that produced an assistant message.
type GenerationStats struct {
	RequestTime      int64   `json:"requestTime"`
	TimeToFirstToken int64   `json:"timeToFirstToken,omitempty"`
	TotalTime        int64   `json:"totalTime"`
	InputTokens      int     `json:"inputTokens"`
	OutputTokens     int     `json:"outputTokens"`
	Cost             float64 `json:"cost"`
	LlmID            string  `json:"llmId"`
}

// FunctionCallIntent is an LLM request to invoke a bound function.
type FunctionCallIntent struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// LlmMessage is a single conversation message. Content is either the
// plain Text string or the ordered Parts sequence; when Parts is
// non-empty it takes precedence.
type LlmMessage struct {
	Role  Role          `json:"role"`
	Text  string        `json:"content,omitempty"`
	Parts []MessagePart `json:"parts,omitempty"`
	// ToolCalls carries function-call intents on assistant messages.
	ToolCalls []FunctionCallIntent `json:"toolCalls,omitempty"`
	// ToolCallID links a tool-role result message to its intent.
	ToolCallID string `json:"toolCallId,omitempty"`
	// Cache marks a message for provider-side prompt caching.
	Cache string `json:"cache,omitempty"`
	// Stats is set on assistant messages returned by an LLM.
	Stats *GenerationStats `json:"stats,omitempty"`
}

// ContentText flattens the message content to plain text: the Text
// field when Parts is empty, otherwise the text and reasoning parts
// joined in order.
func (m *LlmMessage) ContentText() string {
	if len(m.Parts) == 0 {
		return m.Text
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText || p.Type == PartReasoning {
			out += p.Text
		}
	}
	return out
}

// TextMessage builds a plain text message.
func TextMessage(role Role, text string) LlmMessage {
	return LlmMessage{Role: role, Text: text}
}
