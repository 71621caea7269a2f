package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers catalog routes. Reads are public; writes need adminOnly.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminOnly gin.HandlerFunc) {
	group := g.Group("/resources")

	// === Public Routes ===
	group.GET("", h.List)
	group.GET("/:id", h.Get)

	// === Admin Routes ===
	admin := group.Group("")
	admin.Use(authMiddleware, adminOnly)
	{
		admin.POST("", h.Create)
		admin.PATCH("/:id", h.Update)
	}
}
