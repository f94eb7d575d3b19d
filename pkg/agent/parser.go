package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/typedai/typedai/pkg/models"
)

// plannerResponse is the JSON shape the planning prompt requests.
type plannerResponse struct {
	Thinking      string `json:"thinking"`
	FunctionCalls []struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"functionCalls"`
}

// ParseFunctionCalls extracts function-call intents from the planner's
// response text. The JSON object may be wrapped in a fenced code block
// or surrounded by prose; parsing is defensive and an unparseable
// response is an error the loop feeds back to the model.
func ParseFunctionCalls(text string) ([]models.FunctionCallIntent, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var resp plannerResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("invalid planner JSON: %w", err)
	}

	intents := make([]models.FunctionCallIntent, 0, len(resp.FunctionCalls))
	for _, call := range resp.FunctionCalls {
		if call.Name == "" {
			return nil, fmt.Errorf("function call missing name")
		}
		intents = append(intents, models.FunctionCallIntent{
			Name:       call.Name,
			Parameters: call.Parameters,
		})
	}
	return intents, nil
}

// extractJSONObject returns the outermost braced object in text,
// preferring the content of a ```json fence when present.
func extractJSONObject(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
