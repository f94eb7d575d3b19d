package agent

import (
	"fmt"
	"strings"

	"github.com/typedai/typedai/pkg/functions"
	"github.com/typedai/typedai/pkg/models"
)

// responseFormat instructs the model to answer with a JSON plan. Tool
// calling is text-based so every provider in the fallback chain can
// serve the planning call.
const responseFormat = `Respond with a single JSON object of the shape:
{"thinking": "<your reasoning>", "functionCalls": [{"name": "<function name>", "parameters": {...}}]}
Call Agent_completed when the request is fully satisfied, or Agent_requestFeedback when you need input from the user.`

// buildPlanningMessages assembles the conversation sent to the planning
// LLM: system prompt (identity, memory, live files, function schemas,
// response format), the original request, then the running history.
func buildPlanningMessages(agent *models.AgentContext) []models.LlmMessage {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are an autonomous agent named %q working on behalf of the user.\n\n", agent.Name)

	sys.WriteString("<functions>\n")
	for _, fn := range functions.Instantiate(agent.Functions) {
		sys.WriteString(fn.Schema().PromptBlock())
		sys.WriteString("\n")
	}
	sys.WriteString("</functions>\n")

	if len(agent.Memory) > 0 {
		sys.WriteString("\n<memory>\n")
		for key, content := range agent.Memory {
			fmt.Fprintf(&sys, "<entry key=%q>%s</entry>\n", key, content)
		}
		sys.WriteString("</memory>\n")
	}
	if len(agent.LiveFiles) > 0 {
		sys.WriteString("\n<live-files>\n")
		for _, f := range agent.LiveFiles {
			fmt.Fprintf(&sys, "%s\n", f)
		}
		sys.WriteString("</live-files>\n")
	}

	sys.WriteString("\n")
	sys.WriteString(responseFormat)

	out := make([]models.LlmMessage, 0, len(agent.Messages)+2)
	out = append(out, models.TextMessage(models.RoleSystem, sys.String()))
	out = append(out, models.TextMessage(models.RoleUser, agent.UserPrompt))
	out = append(out, agent.Messages...)
	return out
}

// noFunctionCallFeedback nudges the model after a response without any
// function calls.
const noFunctionCallFeedback = `Your response contained no function calls. Either continue the task by calling a function, or call Agent_completed / Agent_requestFeedback.`

func formatFeedback(parseErr error) string {
	return fmt.Sprintf("Your response could not be parsed (%v). %s", parseErr, responseFormat)
}

// formatObservation renders a function result as the observation
// message appended to the conversation.
func formatObservation(result models.FunctionCallResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<function_result name=%q>\n", result.FunctionName)
	if result.Stdout != "" {
		fmt.Fprintf(&b, "<stdout>%s</stdout>\n", result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintf(&b, "<stderr>%s</stderr>\n", result.Stderr)
	}
	b.WriteString("</function_result>")
	return b.String()
}
