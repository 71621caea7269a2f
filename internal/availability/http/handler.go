package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
)

type Handler struct {
	calculator *availability.Calculator
}

func NewHandler(calculator *availability.Calculator) *Handler {
	return &Handler{calculator: calculator}
}

// GetRange renders the per-day calendar of one resource.
func (h *Handler) GetRange(c *gin.Context) {
	var uri ResourceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var query RangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	rng := query.Range()
	key := capacity.Key{Kind: capacity.Kind(uri.Kind), ResourceID: uri.ID}
	days, err := h.calculator.ComputeRange(c.Request.Context(), key, rng)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRangeResponse(uri.Kind, uri.ID, rng, days))
}

// GetCalendar renders the ratio-based summary across resources of one kind.
func (h *Handler) GetCalendar(c *gin.Context) {
	var uri KindURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var query CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	rng := query.Range()
	days, err := h.calculator.ComputeAggregateRange(c.Request.Context(), capacity.Kind(uri.Kind), query.ResourceIDs(), rng)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCalendarResponse(uri.Kind, rng, days))
}
