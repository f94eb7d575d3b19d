package functions

import (
	"context"
	"fmt"

	"github.com/typedai/typedai/pkg/scope"
)

// Built-in agent control function names. The runner intercepts the
// terminal ones; the rest mutate the executing agent directly.
const (
	AgentCompleted       = "Agent_completed"
	AgentRequestFeedback = "Agent_requestFeedback"
	AgentSaveMemory      = "Agent_saveMemory"
	AgentDeleteMemory    = "Agent_deleteMemory"
	AgentSetLiveFiles    = "Agent_setLiveFiles"
)

func init() {
	Register(AgentCompleted, func() Function { return completedFn{} })
	Register(AgentRequestFeedback, func() Function { return requestFeedbackFn{} })
	Register(AgentSaveMemory, func() Function { return saveMemoryFn{} })
	Register(AgentDeleteMemory, func() Function { return deleteMemoryFn{} })
	Register(AgentSetLiveFiles, func() Function { return setLiveFilesFn{} })
}

type completedFn struct{}

func (completedFn) Schema() Schema {
	return Schema{
		Name:        AgentCompleted,
		Description: "Call when the user request has been fully completed. Ends the agent.",
		Parameters: []Parameter{
			{Name: "note", Type: "string", Description: "Summary of what was done", Required: true},
		},
	}
}

// Call is a no-op: the runner intercepts the intent and transitions to
// the completed state before execution.
func (completedFn) Call(ctx context.Context, params map[string]any) (string, error) {
	note, err := stringParam(params, "note")
	if err != nil {
		return "", err
	}
	return note, nil
}

type requestFeedbackFn struct{}

func (requestFeedbackFn) Schema() Schema {
	return Schema{
		Name:        AgentRequestFeedback,
		Description: "Call when input from the user is required before work can continue. Parks the agent until feedback arrives.",
		Parameters: []Parameter{
			{Name: "request", Type: "string", Description: "The question for the user", Required: true},
		},
	}
}

// Call is a no-op for the same reason as Agent_completed.
func (requestFeedbackFn) Call(ctx context.Context, params map[string]any) (string, error) {
	request, err := stringParam(params, "request")
	if err != nil {
		return "", err
	}
	return request, nil
}

type saveMemoryFn struct{}

func (saveMemoryFn) Schema() Schema {
	return Schema{
		Name:        AgentSaveMemory,
		Description: "Store a key/content pair in the agent's persistent memory, visible in every later prompt.",
		Parameters: []Parameter{
			{Name: "key", Type: "string", Description: "Memory key", Required: true},
			{Name: "content", Type: "string", Description: "Content to remember", Required: true},
		},
	}
}

func (saveMemoryFn) Call(ctx context.Context, params map[string]any) (string, error) {
	agent := scope.CurrentAgent(ctx)
	if agent == nil {
		return "", fmt.Errorf("no agent bound to context")
	}
	key, err := stringParam(params, "key")
	if err != nil {
		return "", err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return "", err
	}
	if agent.Memory == nil {
		agent.Memory = map[string]string{}
	}
	agent.Memory[key] = content
	return fmt.Sprintf("Memory saved under %q", key), nil
}

type deleteMemoryFn struct{}

func (deleteMemoryFn) Schema() Schema {
	return Schema{
		Name:        AgentDeleteMemory,
		Description: "Remove a key from the agent's persistent memory.",
		Parameters: []Parameter{
			{Name: "key", Type: "string", Description: "Memory key to remove", Required: true},
		},
	}
}

func (deleteMemoryFn) Call(ctx context.Context, params map[string]any) (string, error) {
	agent := scope.CurrentAgent(ctx)
	if agent == nil {
		return "", fmt.Errorf("no agent bound to context")
	}
	key, err := stringParam(params, "key")
	if err != nil {
		return "", err
	}
	delete(agent.Memory, key)
	return fmt.Sprintf("Memory %q deleted", key), nil
}

type setLiveFilesFn struct{}

func (setLiveFilesFn) Schema() Schema {
	return Schema{
		Name:        AgentSetLiveFiles,
		Description: "Replace the set of files whose current contents are included in every prompt.",
		Parameters: []Parameter{
			{Name: "files", Type: "string[]", Description: "File paths relative to the working directory", Required: true},
		},
	}
}

func (setLiveFilesFn) Call(ctx context.Context, params map[string]any) (string, error) {
	agent := scope.CurrentAgent(ctx)
	if agent == nil {
		return "", fmt.Errorf("no agent bound to context")
	}
	files, err := stringSliceParam(params, "files")
	if err != nil {
		return "", err
	}
	agent.LiveFiles = files
	return fmt.Sprintf("Tracking %d live files", len(files)), nil
}
