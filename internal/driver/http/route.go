package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers driver routes. The availability lookup is
// public; schedules are staff only.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffOnly gin.HandlerFunc) {
	g.GET("/driver-availability", h.ListAvailable)

	group := g.Group("/drivers/:id")
	group.Use(authMiddleware, staffOnly)
	{
		group.GET("/schedule", h.GetSchedule)
		group.POST("/schedule", h.SetSchedule)
	}
}
