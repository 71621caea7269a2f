package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the staff-only capacity management routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffOnly gin.HandlerFunc) {
	group := g.Group("/inventory/:kind/:id")
	group.Use(authMiddleware, staffOnly)
	{
		group.POST("/init", h.InitRange)
		group.PUT("/days/:date", h.UpdateDay)
		group.POST("/batch", h.BatchUpdate)
	}
}
