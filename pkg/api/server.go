// Package api exposes the HTTP surface: agent lifecycle, LLM call
// inspection, code-review triggering, and review rule management.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/typedai/typedai/pkg/agent"
	"github.com/typedai/typedai/pkg/config"
	"github.com/typedai/typedai/pkg/queue"
	"github.com/typedai/typedai/pkg/review"
	"github.com/typedai/typedai/pkg/store"
)

// Server wires the HTTP handlers to the runtime components. The review
// engine is nil when no source-control host is configured.
type Server struct {
	cfg    *config.Config
	stores *store.Stores
	runner *agent.Runner
	pool   *queue.Pool
	engine *review.Engine
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, stores *store.Stores, runner *agent.Runner, pool *queue.Pool, engine *review.Engine) *Server {
	return &Server{
		cfg:    cfg,
		stores: stores,
		runner: runner,
		pool:   pool,
		engine: engine,
	}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.userScope())

	r.GET("/health", s.Health)

	api := r.Group("/api")
	{
		api.POST("/agents", s.StartAgent)
		api.GET("/agents", s.ListAgents)
		api.GET("/agents/running", s.ListRunningAgents)
		api.DELETE("/agents", s.DeleteAgents)
		api.GET("/agents/:id", s.GetAgent)
		api.POST("/agents/:id/resume", s.ResumeAgent)
		api.POST("/agents/:id/cancel", s.CancelAgent)
		api.PUT("/agents/:id/functions", s.UpdateAgentFunctions)
		api.GET("/agents/:id/llm-calls", s.ListAgentLlmCalls)

		api.POST("/reviews/mr", s.TriggerReview)
		api.GET("/review-configs", s.ListReviewConfigs)
		api.POST("/review-configs", s.CreateReviewConfig)
		api.GET("/review-configs/:id", s.GetReviewConfig)
		api.PUT("/review-configs/:id", s.UpdateReviewConfig)
		api.DELETE("/review-configs/:id", s.DeleteReviewConfig)
	}
	return r
}
