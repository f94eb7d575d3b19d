package review

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/typedai/typedai/pkg/models"
)

// violation is one finding parsed from the reviewer LLM's response.
type violation struct {
	LineNumber int    `json:"lineNumber"`
	Comment    string `json:"comment"`
}

// reviewResponse is the JSON shape the review prompt requests.
type reviewResponse struct {
	Thinking   string      `json:"thinking"`
	Violations []violation `json:"violations"`
}

// buildReviewMessages constructs the prompt for one review unit: the
// rule rendered as XML, the annotated code, and the response contract.
func buildReviewMessages(rule models.CodeReviewConfig, file, codeWithLines string) []models.LlmMessage {
	var sys strings.Builder
	sys.WriteString("You are a code reviewer enforcing a single rule on a merge request diff.\n")
	sys.WriteString("Only report violations of this rule; ignore everything else.\n\n")
	sys.WriteString(ruleXML(rule))
	sys.WriteString("\nRespond with a single JSON object of the shape:\n")
	sys.WriteString(`{"thinking": "<your reasoning>", "violations": [{"lineNumber": <number>, "comment": "<review comment>"}]}` + "\n")
	sys.WriteString("Line numbers refer to the numbered annotations in the code. An empty violations array means the code is clean.")

	var user strings.Builder
	fmt.Fprintf(&user, "File: %s\n\n<code>\n%s</code>", file, codeWithLines)

	return []models.LlmMessage{
		models.TextMessage(models.RoleSystem, sys.String()),
		models.TextMessage(models.RoleUser, user.String()),
	}
}

func ruleXML(rule models.CodeReviewConfig) string {
	var b strings.Builder
	b.WriteString("<rule>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", rule.Title)
	fmt.Fprintf(&b, "<description>%s</description>\n", rule.Description)
	if len(rule.Examples) > 0 {
		b.WriteString("<examples>\n")
		for _, ex := range rule.Examples {
			b.WriteString("<example>\n")
			fmt.Fprintf(&b, "<code>%s</code>\n", ex.Code)
			fmt.Fprintf(&b, "<review_comment>%s</review_comment>\n", ex.ReviewComment)
			b.WriteString("</example>\n")
		}
		b.WriteString("</examples>\n")
	}
	b.WriteString("</rule>\n")
	return b.String()
}

// parseReviewResponse extracts the violations from the model's text.
// Any shape problem yields nil: the unit is skipped and nothing is
// cached, so the next run retries it.
func parseReviewResponse(text string) []violation {
	payload := extractJSON(text)
	if payload == "" {
		slog.Warn("Review response contained no JSON object")
		return nil
	}
	var resp reviewResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		slog.Warn("Review response JSON is invalid", "error", err)
		return nil
	}
	if resp.Violations == nil {
		resp.Violations = []violation{}
	}
	for _, v := range resp.Violations {
		if v.Comment == "" || v.LineNumber <= 0 {
			slog.Warn("Review response violation is malformed", "line", v.LineNumber)
			return nil
		}
	}
	return resp.Violations
}

// extractJSON returns the outermost braced object in text, preferring
// the content of a ```json fence when present.
func extractJSON(text string) string {
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
	depth, inString, escaped := 0, false, false
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
