package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/typedai/typedai/pkg/models"
	"github.com/typedai/typedai/pkg/scope"
	"github.com/typedai/typedai/pkg/version"
)

// userScope binds the ambient user onto every request context. In
// single-user mode that is the configured identity.
func (s *Server) userScope() gin.HandlerFunc {
	user := models.User{
		ID:      s.cfg.User.ID,
		Name:    s.cfg.User.Name,
		Email:   s.cfg.User.Email,
		Enabled: true,
	}
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(scope.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// Health reports pool health and overall liveness.
func (s *Server) Health(c *gin.Context) {
	health := s.pool.Health()
	status := http.StatusOK
	if !health.IsHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  map[bool]string{true: "healthy", false: "unhealthy"}[health.IsHealthy],
		"version": version.Full(),
		"time":    time.Now().UTC().Format(time.RFC3339),
		"pool":    health,
	})
}
