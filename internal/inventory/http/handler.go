package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/inventory"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
)

type Handler struct {
	initializer *inventory.Initializer
}

func NewHandler(initializer *inventory.Initializer) *Handler {
	return &Handler{initializer: initializer}
}

func (h *Handler) InitRange(c *gin.Context) {
	var uri ResourceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body InitRangeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	res, err := h.initializer.InitRange(c.Request.Context(), inventory.InitRangeRequest{
		Key:   uri.Key(),
		Start: body.Start,
		End:   body.End,
		Total: body.TotalUnits,
		Price: body.PriceOverride,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, InitRangeResponse{Range: res.Range, DaysUpdated: len(res.Records)})
}

func (h *Handler) UpdateDay(c *gin.Context) {
	var uri DayURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body UpdateDayRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	rec, err := h.initializer.UpdateDay(c.Request.Context(), uri.Key(), calendar.MustParse(uri.Date), body.TotalUnits, body.PriceOverride)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRecordResponse(rec))
}

func (h *Handler) BatchUpdate(c *gin.Context) {
	var uri ResourceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	var body BatchUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	records, err := h.initializer.BatchUpdate(c.Request.Context(), uri.Key(), body.Dates, body.TotalUnits, body.PriceOverride)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"days": NewRecordResponses(records)})
}
