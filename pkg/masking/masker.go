// Package masking redacts credentials from LLM conversation records
// before they are persisted. Agents routinely see tokens in job logs,
// config files, and clone URLs; the durable call store must not.
package masking

import (
	"log/slog"
	"regexp"

	"github.com/typedai/typedai/pkg/models"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns are the credential shapes masked on every record.
// Order matters: URL credentials are masked before generic key=value
// so the scheme separator survives.
var builtinPatterns = []struct {
	name        string
	pattern     string
	replacement string
}{
	{"url_credentials", `://[^/\s:@]+:[^@\s]+@`, `://***:***@`},
	{"private_key", `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`, `***MASKED_PRIVATE_KEY***`},
	{"gitlab_token", `glpat-[A-Za-z0-9_\-]{20,}`, `***MASKED_GITLAB_TOKEN***`},
	{"openai_key", `sk-[A-Za-z0-9_\-]{20,}`, `***MASKED_API_KEY***`},
	{"aws_access_key", `AKIA[0-9A-Z]{16}`, `***MASKED_AWS_KEY***`},
	{"bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-.=/+]{16,}`, `Bearer ***MASKED***`},
	{"key_value_secret", `(?i)\b(api[_-]?key|secret|password|token)(["']?\s*[:=]\s*["']?)[^\s"'&]{8,}`, `${1}${2}***MASKED***`},
}

// Masker applies the built-in patterns to strings and messages.
type Masker struct {
	patterns []*CompiledPattern
}

// NewMasker compiles the built-in patterns. Invalid patterns are
// logged and skipped rather than failing boot.
func NewMasker() *Masker {
	m := &Masker{}
	for _, p := range builtinPatterns {
		compiled, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", p.name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, &CompiledPattern{
			Name:        p.name,
			Regex:       compiled,
			Replacement: p.replacement,
		})
	}
	return m
}

// MaskString applies every pattern to s.
func (m *Masker) MaskString(s string) string {
	for _, p := range m.patterns {
		s = p.Regex.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// MaskMessages returns a copy of messages with text content, part
// text, and string function-call parameters masked. The input slice
// is never mutated; the live conversation keeps its real values.
func (m *Masker) MaskMessages(messages []models.LlmMessage) []models.LlmMessage {
	out := make([]models.LlmMessage, len(messages))
	for i, msg := range messages {
		out[i] = m.MaskMessage(msg)
	}
	return out
}

// MaskMessage masks one message, copying the fields it rewrites.
func (m *Masker) MaskMessage(msg models.LlmMessage) models.LlmMessage {
	msg.Text = m.MaskString(msg.Text)

	if len(msg.Parts) > 0 {
		parts := make([]models.MessagePart, len(msg.Parts))
		copy(parts, msg.Parts)
		for i := range parts {
			parts[i].Text = m.MaskString(parts[i].Text)
		}
		msg.Parts = parts
	}

	if len(msg.ToolCalls) > 0 {
		calls := make([]models.FunctionCallIntent, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		for i := range calls {
			if len(calls[i].Parameters) == 0 {
				continue
			}
			params := make(map[string]any, len(calls[i].Parameters))
			for k, v := range calls[i].Parameters {
				if s, ok := v.(string); ok {
					params[k] = m.MaskString(s)
				} else {
					params[k] = v
				}
			}
			calls[i].Parameters = params
		}
		msg.ToolCalls = calls
	}
	return msg
}
