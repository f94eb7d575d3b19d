package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/store"
)

// ResumeOptions carry the human input that releases a parked agent.
type ResumeOptions struct {
	// Feedback is appended as a user message before the next iteration.
	// Required when resuming from hitl_feedback.
	Feedback string
}

// Resume releases an agent from a human gate, error, or terminal state
// and runs the loop again. Every resume mints a new execution id so
// stale writers from the previous execution are detectable.
func (r *Runner) Resume(ctx context.Context, agentID string, opts ResumeOptions) (*models.AgentContext, error) {
	agent, err := r.Release(ctx, agentID, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx, agent); err != nil {
		return agent, err
	}
	return agent, nil
}

// Release validates and persists the gate transition without running
// the loop, for callers that dispatch execution through a worker pool.
func (r *Runner) Release(ctx context.Context, agentID string, opts ResumeOptions) (*models.AgentContext, error) {
	agent, err := r.stores.Agents.Load(ctx, agentID)
	if err != nil {
		return nil, err
	}

	user, err := scope.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if agent.User.ID != user.ID {
		return nil, fmt.Errorf("agent %s: %w", agentID, store.ErrUnauthorized)
	}

	switch agent.State {
	case models.StateHitlThreshold:
		agent.IterationsSinceHil = 0
	case models.StateHil:
		agent.CostSinceHil = 0
	case models.StateHitlFeedback:
		if opts.Feedback == "" {
			return nil, fmt.Errorf("agent %s is waiting for feedback; none provided", agentID)
		}
	case models.StateHitlTool:
		// Confirmation: the parked PendingToolCalls execute at the top
		// of the next iteration, ahead of any planning.
	case models.StateError,
		models.StateCompleted, models.StateShutdown, models.StateTimeout:
		// Intents parked at a confirmation gate before this state were
		// never approved; the planner decides again.
		agent.PendingToolCalls = nil
	default:
		return nil, fmt.Errorf("agent %s in state %s cannot be resumed", agentID, agent.State)
	}

	if opts.Feedback != "" {
		agent.PendingMessages = append(agent.PendingMessages, opts.Feedback)
	}
	agent.ExecutionID = uuid.NewString()
	agent.Error = ""
	agent.State = models.StateAgent
	agent.Touch()

	if err := r.stores.Agents.Save(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to save resumed agent: %w", err)
	}
	return agent, nil
}

// Cancel moves an executing agent to shutdown. The running loop
// observes the state change at its next gate.
func (r *Runner) Cancel(ctx context.Context, agentID string) error {
	agent, err := r.stores.Agents.Load(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.State.IsTerminal() {
		return nil
	}
	return r.stores.Agents.UpdateState(ctx, agent, models.StateShutdown)
}
