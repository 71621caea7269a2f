package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/driver"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
)

type Handler struct {
	resolver *driver.Resolver
}

func NewHandler(resolver *driver.Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) ListAvailable(c *gin.Context) {
	var query AvailableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	day := calendar.MustParse(query.Date)
	ids, err := h.resolver.QueryAvailable(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AvailableResponse{Date: day, DriverIDs: ids})
}

func (h *Handler) SetSchedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body SetScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	statuses, err := h.resolver.SetSchedule(c.Request.Context(), uri.ID, body.Dates, driver.Status(body.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewScheduleResponse(uri.ID, statuses))
}

func (h *Handler) GetSchedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var query ScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	statuses, err := h.resolver.Schedule(c.Request.Context(), uri.ID, query.Range())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewScheduleResponse(uri.ID, statuses))
}
