// Package agent implements the agent execution state machine: the
// iteration loop, durable checkpoints, human-in-the-loop gates, cost
// accounting, and child agent lifetime.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/typedai/typedai/pkg/functions"
	"github.com/typedai/typedai/pkg/llm"
	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
	"github.com/typedai/typedai/pkg/trace"
)

// Config tunes the runner loop.
type Config struct {
	// MaxIterations bounds a single execution; 0 uses the default.
	MaxIterations int
	// IterationTimeout bounds one planning+execution pass.
	IterationTimeout time.Duration
}

const (
	defaultMaxIterations    = 50
	defaultIterationTimeout = 10 * time.Minute
)

func (c Config) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return defaultMaxIterations
}

func (c Config) iterationTimeout() time.Duration {
	if c.IterationTimeout > 0 {
		return c.IterationTimeout
	}
	return defaultIterationTimeout
}

// Runner drives agent contexts through the state machine. One Run call
// owns its agent exclusively; callers enforce single-writer-per-agent.
type Runner struct {
	stores *store.Stores
	llm    llm.LLM
	cfg    Config
}

// NewRunner creates a runner over the given stores and planning LLM.
func NewRunner(stores *store.Stores, planner llm.LLM, cfg Config) *Runner {
	return &Runner{stores: stores, llm: planner, cfg: cfg}
}

// StartOptions describe a new agent.
type StartOptions struct {
	Name       string
	Type       models.AgentType
	UserPrompt string
	// Functions is the capability set; unknown names are dropped.
	Functions []string
	// HilBudget is the cost (USD) allowed between budget gates; 0
	// disables the gate.
	HilBudget float64
	// HilCount is the number of planning iterations allowed between
	// threshold gates; 0 disables the gate.
	HilCount int
	// WallClockBudget bounds total wall time; 0 means unbounded.
	WallClockBudget time.Duration
	// CompletedHandler names a registered terminal-notification sink.
	CompletedHandler string
	// ParentAgentID links the new agent as a child.
	ParentAgentID string
}

// Start creates and persists a new agent context, then runs the loop
// to a parked or terminal state.
func (r *Runner) Start(ctx context.Context, opts StartOptions) (*models.AgentContext, error) {
	agent, err := r.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx, agent); err != nil {
		return agent, err
	}
	return agent, nil
}

// Create persists a new agent context without running it, for callers
// that dispatch execution through a worker pool.
func (r *Runner) Create(ctx context.Context, opts StartOptions) (*models.AgentContext, error) {
	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	agent := &models.AgentContext{
		AgentID:          uuid.NewString(),
		ExecutionID:      uuid.NewString(),
		ParentAgentID:    opts.ParentAgentID,
		User:             user,
		Type:             opts.Type,
		State:            models.StateAgent,
		Name:             opts.Name,
		UserPrompt:       opts.UserPrompt,
		InputPrompt:      opts.UserPrompt,
		Functions:        functions.ResolveNames(opts.Functions),
		HilBudget:        opts.HilBudget,
		HilCount:         opts.HilCount,
		CreatedAt:        now,
		LastUpdate:       now,
		CompletedHandler: opts.CompletedHandler,
	}
	if opts.WallClockBudget > 0 {
		agent.WallClockBudgetMs = opts.WallClockBudget.Milliseconds()
	}
	if agent.Type == "" {
		agent.Type = models.AgentTypeCodegen
	}

	if err := r.stores.Agents.Save(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to save new agent: %w", err)
	}
	return agent, nil
}

// Run executes the iteration loop until the agent parks at a human
// gate or reaches a terminal state. The agent must be in an executing,
// non-gate state.
func (r *Runner) Run(ctx context.Context, agent *models.AgentContext) error {
	return trace.WithSpan(ctx, "agent.run", func(ctx context.Context) error {
		return r.runLoop(ctx, agent)
	}, trace.String("agent.id", agent.AgentID), trace.String("agent.name", agent.Name))
}

func (r *Runner) runLoop(ctx context.Context, agent *models.AgentContext) error {
	ctx = scope.WithAgent(ctx, agent)

	for i := 0; i < r.cfg.maxIterations(); i++ {
		// External cancellation parks the agent as shutdown; in-flight
		// work is not resumed implicitly.
		if ctx.Err() != nil {
			return r.park(context.WithoutCancel(ctx), agent, models.StateShutdown)
		}
		if deadline := agent.Deadline(); !deadline.IsZero() && time.Now().After(deadline) {
			r.notifyHandler(ctx, agent)
			return r.park(ctx, agent, models.StateTimeout)
		}

		// Human gates apply before the LLM is consulted.
		if agent.HilCount > 0 && agent.IterationsSinceHil >= agent.HilCount {
			return r.park(ctx, agent, models.StateHitlThreshold)
		}
		if agent.HilBudget > 0 && agent.CostSinceHil > agent.HilBudget {
			return r.park(ctx, agent, models.StateHil)
		}

		parked, err := r.iterate(ctx, agent)
		if err != nil {
			agent.Error = err.Error()
			if parkErr := r.park(ctx, agent, models.StateError); parkErr != nil {
				slog.Error("Failed to checkpoint error state",
					"agent_id", agent.AgentID, "error", parkErr)
			}
			return err
		}
		if parked {
			return nil
		}
	}

	agent.Error = fmt.Sprintf("max iterations (%d) reached", r.cfg.maxIterations())
	return r.park(ctx, agent, models.StateError)
}

// iterate performs one pass of the loop: plan, execute intents,
// checkpoint. Returns true when the agent parked at a gate or reached
// a terminal state.
func (r *Runner) iterate(ctx context.Context, agent *models.AgentContext) (bool, error) {
	iterCtx, cancel := context.WithTimeout(ctx, r.cfg.iterationTimeout())
	defer cancel()

	// Drain user messages queued between iterations.
	for _, pending := range agent.PendingMessages {
		agent.Messages = append(agent.Messages, models.TextMessage(models.RoleUser, pending))
	}
	agent.PendingMessages = nil

	// Intents parked at the confirmation gate run before the next
	// planning pass; the human has approved the first of them.
	if pending := agent.PendingToolCalls; len(pending) > 0 {
		agent.PendingToolCalls = nil
		if err := r.stores.Agents.UpdateState(ctx, agent, models.StateFunctions); err != nil {
			return false, err
		}
		parked, err := r.executeIntents(iterCtx, agent, pending, true)
		if err != nil || parked {
			return parked, err
		}
		if err := r.stores.Agents.UpdateState(ctx, agent, models.StateAgent); err != nil {
			return false, err
		}
	}

	prompt := buildPlanningMessages(agent)
	assistant, err := llm.GenerateWithRetry(iterCtx, r.llm, prompt, llm.GenerateOptions{
		ID:          "agent-plan",
		Temperature: 0.5,
	})
	if err != nil {
		if mte, ok := llm.IsMaxTokensExceeded(err); ok && mte.Partial != nil {
			// Keep the partial for post-mortem before failing the run.
			agent.Messages = append(agent.Messages, *mte.Partial)
		}
		return false, fmt.Errorf("planning LLM failed: %w", err)
	}

	agent.Messages = append(agent.Messages, *assistant)
	if stats := assistant.Stats; stats != nil {
		agent.AddCost(stats.Cost)
	}
	agent.Iterations++
	agent.IterationsSinceHil++
	agent.Touch()

	intents, parseErr := ParseFunctionCalls(assistant.ContentText())
	if parseErr != nil {
		agent.Messages = append(agent.Messages,
			models.TextMessage(models.RoleUser, formatFeedback(parseErr)))
		return false, r.checkpoint(ctx, agent)
	}

	// Terminal control functions are intercepted before execution.
	for _, intent := range intents {
		switch intent.Name {
		case functions.AgentCompleted:
			if err := r.checkpoint(ctx, agent); err != nil {
				return false, err
			}
			if err := r.park(ctx, agent, models.StateCompleted); err != nil {
				return false, err
			}
			r.notifyHandler(ctx, agent)
			return true, nil
		case functions.AgentRequestFeedback:
			if request, _ := intent.Parameters["request"].(string); request != "" {
				agent.Messages = append(agent.Messages,
					models.TextMessage(models.RoleUser, "Feedback requested: "+request))
			}
			if err := r.checkpoint(ctx, agent); err != nil {
				return false, err
			}
			if err := r.park(ctx, agent, models.StateHitlFeedback); err != nil {
				return false, err
			}
			r.notifyHandler(ctx, agent)
			return true, nil
		}
	}

	if len(intents) == 0 {
		agent.Messages = append(agent.Messages,
			models.TextMessage(models.RoleUser, noFunctionCallFeedback))
		return false, r.checkpoint(ctx, agent)
	}

	if err := r.stores.Agents.UpdateState(ctx, agent, models.StateFunctions); err != nil {
		return false, err
	}
	parked, err := r.executeIntents(iterCtx, agent, intents, false)
	if err != nil || parked {
		return parked, err
	}

	if err := r.stores.Agents.UpdateState(ctx, agent, models.StateAgent); err != nil {
		return false, err
	}
	return false, r.checkpoint(ctx, agent)
}

// executeIntents runs each function call in order, appending results to
// the history and observations to the conversation. A tool requesting
// confirmation parks the agent with the unexecuted tail of the batch;
// confirmed covers only the first intent, so a later gated call in the
// same batch parks again for its own approval.
func (r *Runner) executeIntents(ctx context.Context, agent *models.AgentContext, intents []models.FunctionCallIntent, confirmed bool) (bool, error) {
	for i, intent := range intents {
		result := models.FunctionCallResult{
			FunctionName: intent.Name,
			Parameters:   intent.Parameters,
		}

		if !boundFunction(agent, intent.Name) {
			result.Stderr = fmt.Sprintf("Function %q is not bound to this agent", intent.Name)
			agent.FunctionCallHistory = append(agent.FunctionCallHistory, result)
			agent.Messages = append(agent.Messages,
				models.TextMessage(models.RoleUser, formatObservation(result)))
			continue
		}

		fn, ok := functions.Get(intent.Name)
		if !ok {
			result.Stderr = fmt.Sprintf("Function %q is not registered", intent.Name)
			agent.FunctionCallHistory = append(agent.FunctionCallHistory, result)
			agent.Messages = append(agent.Messages,
				models.TextMessage(models.RoleUser, formatObservation(result)))
			continue
		}

		if fn.Schema().RequiresConfirmation && !(confirmed && i == 0) {
			agent.PendingToolCalls = intents[i:]
			agent.Messages = append(agent.Messages, models.TextMessage(models.RoleUser,
				fmt.Sprintf("Awaiting human confirmation to run %s", intent.Name)))
			if err := r.checkpoint(ctx, agent); err != nil {
				return false, err
			}
			return true, r.park(ctx, agent, models.StateHitlTool)
		}

		stdout, callErr := fn.Call(ctx, intent.Parameters)
		if callErr != nil {
			result.Stderr = callErr.Error()
			slog.Warn("Function call failed",
				"agent_id", agent.AgentID, "function", intent.Name, "error", callErr)
		} else {
			result.Stdout = stdout
		}
		agent.FunctionCallHistory = append(agent.FunctionCallHistory, result)
		agent.Messages = append(agent.Messages,
			models.TextMessage(models.RoleUser, formatObservation(result)))
	}
	return false, nil
}

func boundFunction(agent *models.AgentContext, name string) bool {
	for _, bound := range agent.Functions {
		if bound == name {
			return true
		}
	}
	return false
}

// checkpoint persists the full context with a bounded write deadline so
// a wedged store cannot hang the loop.
func (r *Runner) checkpoint(ctx context.Context, agent *models.AgentContext) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.stores.Agents.Save(saveCtx, agent); err != nil {
		return fmt.Errorf("failed to checkpoint agent %s: %w", agent.AgentID, err)
	}
	return nil
}

// park checkpoints the agent then moves it to the given resting state.
func (r *Runner) park(ctx context.Context, agent *models.AgentContext, state models.AgentState) error {
	if err := r.checkpoint(ctx, agent); err != nil {
		return err
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return r.stores.Agents.UpdateState(saveCtx, agent, state)
}

func (r *Runner) notifyHandler(ctx context.Context, agent *models.AgentContext) {
	if agent.CompletedHandler == "" {
		return
	}
	handler, ok := GetCompletedHandler(agent.CompletedHandler)
	if !ok {
		slog.Warn("Completed handler not registered",
			"agent_id", agent.AgentID, "handler", agent.CompletedHandler)
		return
	}
	// Handler failures never mask the terminal transition.
	if err := handler.AgentCompleted(ctx, agent); err != nil {
		slog.Error("Completed handler failed",
			"agent_id", agent.AgentID, "handler", agent.CompletedHandler, "error", err)
	}
}

// ChildSpec describes one sub-agent to spawn.
type ChildSpec struct {
	Name       string
	UserPrompt string
	Functions  []string
}

// RunChildren spawns the given child agents, waits for all of them to
// reach a parked or terminal state, and returns the parent to the agent
// state. The parent sits in child_agents while children run.
func (r *Runner) RunChildren(ctx context.Context, parent *models.AgentContext, specs []ChildSpec) ([]*models.AgentContext, error) {
	if err := r.stores.Agents.UpdateState(ctx, parent, models.StateChildAgents); err != nil {
		return nil, err
	}

	children := make([]*models.AgentContext, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			child, err := r.Start(scope.WithUser(gctx, parent.User), StartOptions{
				Name:          spec.Name,
				Type:          parent.Type,
				UserPrompt:    spec.UserPrompt,
				Functions:     spec.Functions,
				HilBudget:     parent.BudgetRemaining(),
				ParentAgentID: parent.AgentID,
			})
			children[i] = child
			return err
		})
	}
	err := g.Wait()

	for _, child := range children {
		if child != nil {
			parent.AddCost(child.Cost)
		}
	}
	if stateErr := r.stores.Agents.UpdateState(ctx, parent, models.StateAgent); stateErr != nil && err == nil {
		err = stateErr
	}
	return children, err
}
