package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/typedai/typedai/pkg/models"
)

// TriggerReviewRequest is the body of POST /api/reviews/mr.
type TriggerReviewRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	MrIID     int64  `json:"mrIid" binding:"required"`
}

// TriggerReview runs the code-review engine against a merge request.
func (s *Server) TriggerReview(c *gin.Context) {
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "source control is not configured"})
		return
	}

	var req TriggerReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.ReviewMergeRequest(c.Request.Context(), req.ProjectID, req.MrIID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListReviewConfigs returns all review rules sorted by title.
func (s *Server) ListReviewConfigs(c *gin.Context) {
	configs, err := s.stores.ReviewConfigs.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

// GetReviewConfig returns one review rule.
func (s *Server) GetReviewConfig(c *gin.Context) {
	cfg, err := s.stores.ReviewConfigs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// CreateReviewConfig stores a new review rule.
func (s *Server) CreateReviewConfig(c *gin.Context) {
	var cfg models.CodeReviewConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.ID = ""
	if err := s.stores.ReviewConfigs.Save(c.Request.Context(), &cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// UpdateReviewConfig overwrites an existing review rule.
func (s *Server) UpdateReviewConfig(c *gin.Context) {
	var cfg models.CodeReviewConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.ID = c.Param("id")
	if _, err := s.stores.ReviewConfigs.Get(c.Request.Context(), cfg.ID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.stores.ReviewConfigs.Save(c.Request.Context(), &cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// DeleteReviewConfig removes a review rule. Deleting a missing rule is
// a no-op.
func (s *Server) DeleteReviewConfig(c *gin.Context) {
	if err := s.stores.ReviewConfigs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
