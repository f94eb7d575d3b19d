package models

import (
	"slices"
	"time"
)

// AgentType distinguishes autonomous codegen agents from fixed workflows.
type AgentType string

// Agent types.
const (
	AgentTypeCodegen  AgentType = "codegen"
	AgentTypeWorkflow AgentType = "workflow"
)

// AgentState is one node of the agent execution state machine.
type AgentState string

// Agent states. The three terminal states are sinks: no transition
// leaves them except a resume that mints a new execution id.
const (
	StateAgent         AgentState = "agent"
	StateFunctions     AgentState = "functions"
	StateWorkflow      AgentState = "workflow"
	StateChildAgents   AgentState = "child_agents"
	StateHitlTool      AgentState = "hitl_tool"
	StateHitlFeedback  AgentState = "hitl_feedback"
	StateHitlThreshold AgentState = "hitl_threshold"
	StateHil           AgentState = "hil"
	StateError         AgentState = "error"
	StateCompleted     AgentState = "completed"
	StateShutdown      AgentState = "shutdown"
	StateTimeout       AgentState = "timeout"
)

// TerminalStates are the sink states excluded from running queries.
var TerminalStates = []AgentState{StateCompleted, StateShutdown, StateTimeout}

// IsTerminal reports whether s is a sink state.
func (s AgentState) IsTerminal() bool {
	return slices.Contains(TerminalStates, s)
}

// IsExecuting reports whether an agent in this state counts as running.
func (s AgentState) IsExecuting() bool {
	return !s.IsTerminal()
}

// IsHumanGate reports whether s waits on external acknowledgement.
func (s AgentState) IsHumanGate() bool {
	switch s {
	case StateHil, StateHitlTool, StateHitlFeedback, StateHitlThreshold:
		return true
	}
	return false
}

// FunctionCallResult records one executed function call.
type FunctionCallResult struct {
	FunctionName string         `json:"functionName"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Stdout       string         `json:"stdout,omitempty"`
	Stderr       string         `json:"stderr,omitempty"`
}

// FileSystemState is an optional snapshot of the agent's working
// directory. Transient: allowed to reset across save/load.
type FileSystemState struct {
	BasePath         string `json:"basePath"`
	WorkingDirectory string `json:"workingDirectory"`
}

// AgentContext is the durable record of a single agent: identity,
// state, conversation, memory, and capabilities. Mutated only by the
// runner holding the current execution id.
type AgentContext struct {
	AgentID     string `json:"agentId"`
	ExecutionID string `json:"executionId"`
	// ParentAgentID links a child to its parent; empty for roots.
	ParentAgentID string `json:"parentAgentId,omitempty"`
	// ChildAgents holds the ids of spawned children. Both sides of the
	// parent/child link are written in one transaction.
	ChildAgents []string `json:"childAgents,omitempty"`

	User  User       `json:"user"`
	Type  AgentType  `json:"type"`
	State AgentState `json:"state"`
	Error string     `json:"error,omitempty"`

	Name        string `json:"name"`
	UserPrompt  string `json:"userPrompt"`
	InputPrompt string `json:"inputPrompt"`

	Messages            []LlmMessage         `json:"messages"`
	FunctionCallHistory []FunctionCallResult `json:"functionCallHistory,omitempty"`
	CallStack           []string             `json:"callStack,omitempty"`
	Memory              map[string]string    `json:"memory,omitempty"`
	Metadata            map[string]any       `json:"metadata,omitempty"`

	// Functions is the capability set: names of bound function classes.
	Functions []string `json:"functions"`
	// PendingMessages queues user messages delivered between iterations.
	// Transient: allowed to reset across save/load.
	PendingMessages []string `json:"pendingMessages,omitempty"`
	// PendingToolCalls holds the intents parked behind the hitl_tool
	// gate. Confirmation releases the first; the rest run in order.
	PendingToolCalls []FunctionCallIntent `json:"pendingToolCalls,omitempty"`

	HilBudget float64 `json:"hilBudget"`
	HilCount  int     `json:"hilCount"`
	// Cost is monotonically non-decreasing across the agent's lifetime.
	Cost float64 `json:"cost"`
	// CostSinceHil accumulates cost since the last budget gate.
	CostSinceHil float64 `json:"costSinceHil"`

	Iterations int `json:"iterations"`
	// IterationsSinceHil counts planning iterations since the last
	// threshold gate acknowledgement.
	IterationsSinceHil int `json:"iterationsSinceHil"`

	// CreatedAt and LastUpdate are unix milliseconds.
	CreatedAt  int64 `json:"createdAt"`
	LastUpdate int64 `json:"lastUpdate"`
	// WallClockBudgetMs bounds total wall time; 0 means unbounded.
	WallClockBudgetMs int64 `json:"wallClockBudgetMs,omitempty"`

	// CompletedHandler names a registered terminal-notification sink.
	CompletedHandler string `json:"completedHandler,omitempty"`

	FileSystem *FileSystemState `json:"fileSystem,omitempty"`
	LiveFiles  []string         `json:"liveFiles,omitempty"`
}

// BudgetRemaining is the human-in-the-loop budget left before the next
// cost gate.
func (c *AgentContext) BudgetRemaining() float64 {
	remaining := c.HilBudget - c.CostSinceHil
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AddCost increases both cost accumulators. Negative deltas are
// ignored: cost never decreases.
func (c *AgentContext) AddCost(delta float64) {
	if delta <= 0 {
		return
	}
	c.Cost += delta
	c.CostSinceHil += delta
}

// Deadline returns the wall-clock deadline, or zero time when unbounded.
func (c *AgentContext) Deadline() time.Time {
	if c.WallClockBudgetMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.CreatedAt + c.WallClockBudgetMs)
}

// Touch updates LastUpdate to now.
func (c *AgentContext) Touch() {
	c.LastUpdate = time.Now().UnixMilli()
}

// AgentContextSummary is the projection returned by list queries.
type AgentContextSummary struct {
	AgentID     string     `json:"agentId"`
	Name        string     `json:"name"`
	State       AgentState `json:"state"`
	Cost        float64    `json:"cost"`
	Error       string     `json:"error,omitempty"`
	LastUpdate  int64      `json:"lastUpdate"`
	UserPrompt  string     `json:"userPrompt"`
	InputPrompt string     `json:"inputPrompt"`
	UserID      string     `json:"userId"`
}

// Summary projects the context into its list form.
func (c *AgentContext) Summary() AgentContextSummary {
	return AgentContextSummary{
		AgentID:     c.AgentID,
		Name:        c.Name,
		State:       c.State,
		Cost:        c.Cost,
		Error:       c.Error,
		LastUpdate:  c.LastUpdate,
		UserPrompt:  c.UserPrompt,
		InputPrompt: c.InputPrompt,
		UserID:      c.User.ID,
	}
}
