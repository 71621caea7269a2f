package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/pkg/response"
	"github.com/staydrive/inventory-engine/internal/retention"
)

type Handler struct {
	cleaner *retention.Cleaner
}

func NewHandler(cleaner *retention.Cleaner) *Handler {
	return &Handler{cleaner: cleaner}
}

func (h *Handler) Purge(c *gin.Context) {
	var uri ResourceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var query PurgeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	res, err := h.cleaner.Purge(c.Request.Context(), uri.Key(), query.BeforeDay())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, PurgeResponse{Cutoff: res.Cutoff, Removed: res.Removed})
}
