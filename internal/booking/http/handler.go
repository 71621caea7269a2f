package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/auth"
	"github.com/staydrive/inventory-engine/internal/booking"
	"github.com/staydrive/inventory-engine/internal/capacity"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	// Customers only ever see their own bookings; staff may filter by user.
	filter := booking.Filter{
		UserID:     req.UserID,
		Kind:       capacity.Kind(req.Kind),
		ResourceID: req.ResourceID,
		Status:     booking.Status(req.Status),
		Page:       req.Page,
		PageSize:   req.PageSize,
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter, auth.GetUserID(c), auth.IsStaff(auth.GetRole(c)))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.Create(c.Request.Context(), booking.CreateRequest{
		UserID:     auth.GetUserID(c),
		Kind:       capacity.Kind(body.Kind),
		ResourceID: body.ResourceID,
		Range:      body.Range(),
		Units:      body.UnitsOrDefault(),
		WithDriver: body.WithDriver,
		DriverID:   body.DriverID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID, auth.GetUserID(c), auth.IsStaff(auth.GetRole(c)))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), req.ID, auth.GetUserID(c), auth.IsStaff(auth.GetRole(c)))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}
