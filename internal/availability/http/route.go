package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the public calendar routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	g.GET("/inventory/:kind/:id/availability", h.GetRange)
	g.GET("/calendar/:kind", h.GetCalendar)
}
