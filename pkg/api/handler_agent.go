package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/typedai/typedai/pkg/agent"
	"github.com/typedai/typedai/pkg/models"
)

// StartAgentRequest is the body of POST /api/agents.
type StartAgentRequest struct {
	Name             string   `json:"name" binding:"required"`
	Type             string   `json:"type"`
	UserPrompt       string   `json:"userPrompt" binding:"required"`
	Functions        []string `json:"functions"`
	HilBudget        float64  `json:"hilBudget"`
	HilCount         int      `json:"hilCount"`
	WallClockBudget  string   `json:"wallClockBudget"` // Go duration string
	CompletedHandler string   `json:"completedHandler"`
}

// StartAgent creates an agent and queues its first execution.
func (s *Server) StartAgent(c *gin.Context) {
	var req StartAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var wallClock time.Duration
	if req.WallClockBudget != "" {
		d, err := time.ParseDuration(req.WallClockBudget)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallClockBudget: " + err.Error()})
			return
		}
		wallClock = d
	}

	ctx := c.Request.Context()
	created, err := s.runner.Create(ctx, agent.StartOptions{
		Name:             req.Name,
		Type:             models.AgentType(req.Type),
		UserPrompt:       req.UserPrompt,
		Functions:        req.Functions,
		HilBudget:        req.HilBudget,
		HilCount:         req.HilCount,
		WallClockBudget:  wallClock,
		CompletedHandler: req.CompletedHandler,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.pool.Submit(created, func(runCtx context.Context) error {
		return s.runner.Run(runCtx, created)
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, created.Summary())
}

// ListAgents returns the caller's agents, most recent first.
func (s *Server) ListAgents(c *gin.Context) {
	agents, err := s.stores.Agents.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// ListRunningAgents returns the caller's non-terminal agents.
func (s *Server) ListRunningAgents(c *gin.Context) {
	agents, err := s.stores.Agents.ListRunning(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// GetAgent returns the full agent context.
func (s *Server) GetAgent(c *gin.Context) {
	loaded, err := s.stores.Agents.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loaded)
}

// ResumeAgentRequest is the body of POST /api/agents/:id/resume.
type ResumeAgentRequest struct {
	Feedback string `json:"feedback"`
}

// ResumeAgent releases a parked agent and queues the next execution.
func (s *Server) ResumeAgent(c *gin.Context) {
	var req ResumeAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	released, err := s.runner.Release(c.Request.Context(), c.Param("id"), agent.ResumeOptions{
		Feedback: req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.pool.Submit(released, func(runCtx context.Context) error {
		return s.runner.Run(runCtx, released)
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, released.Summary())
}

// CancelAgent stops a running execution and marks the agent shutdown.
func (s *Server) CancelAgent(c *gin.Context) {
	id := c.Param("id")
	cancelled := s.pool.Cancel(id)
	if err := s.runner.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agentId": id, "cancelledExecution": cancelled})
}

// DeleteAgentsRequest is the body of DELETE /api/agents.
type DeleteAgentsRequest struct {
	AgentIDs []string `json:"agentIds" binding:"required"`
}

// DeleteAgents removes agents and their children. Executing, foreign,
// and child-targeted agents are skipped silently.
func (s *Server) DeleteAgents(c *gin.Context) {
	var req DeleteAgentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.stores.Agents.Delete(c.Request.Context(), req.AgentIDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateFunctionsRequest is the body of PUT /api/agents/:id/functions.
type UpdateFunctionsRequest struct {
	Functions []string `json:"functions" binding:"required"`
}

// UpdateAgentFunctions replaces the agent's capability set.
func (s *Server) UpdateAgentFunctions(c *gin.Context) {
	var req UpdateFunctionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.stores.Agents.UpdateFunctions(c.Request.Context(), c.Param("id"), req.Functions); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListAgentLlmCalls returns the reassembled LLM calls of an agent,
// most recent first.
func (s *Server) ListAgentLlmCalls(c *gin.Context) {
	calls, err := s.stores.LlmCalls.GetCallsForAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"llmCalls": calls})
}
