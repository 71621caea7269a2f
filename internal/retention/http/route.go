package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffOnly gin.HandlerFunc) {
	g.DELETE("/inventory/:kind/:id/history", authMiddleware, staffOnly, h.Purge)
}
