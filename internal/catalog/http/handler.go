package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
)

type Handler struct {
	service catalog.Service
}

func NewHandler(service catalog.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	filter := catalog.Filter{
		Kind:       catalog.Kind(req.Kind),
		ActiveOnly: true,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}

	resources, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ResourceResponse, len(resources))
	for i, r := range resources {
		items[i] = NewResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	res, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	units := 1
	if body.DefaultUnits != nil {
		units = *body.DefaultUnits
	}

	res, err := h.service.Create(c.Request.Context(), catalog.CreateRequest{
		Kind:         catalog.Kind(body.Kind),
		Name:         body.Name,
		DefaultUnits: units,
		DefaultPrice: body.DefaultPrice,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(res))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	res, err := h.service.Update(c.Request.Context(), uri.ID, catalog.UpdateRequest{
		Name:         body.Name,
		DefaultUnits: body.DefaultUnits,
		DefaultPrice: body.DefaultPrice,
		IsActive:     body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}
