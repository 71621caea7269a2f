package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/catalog"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
)

type ResourceResponse struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Name         string           `json:"name"`
	DefaultUnits int              `json:"default_units"`
	DefaultPrice *decimal.Decimal `json:"default_price,omitempty"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewResponse(r *catalog.Resource) ResourceResponse {
	return ResourceResponse{
		ID:           r.ID,
		Kind:         string(r.Kind),
		Name:         r.Name,
		DefaultUnits: r.DefaultUnits,
		DefaultPrice: r.DefaultPrice,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
	}
}

type ListResourcesRequest struct {
	request.ListParams
	Kind string `form:"kind" binding:"omitempty,oneof=homestay car driver"`
}

type CreateRequest struct {
	Kind         string           `json:"kind" binding:"required,oneof=homestay car driver"`
	Name         string           `json:"name" binding:"required"`
	DefaultUnits *int             `json:"default_units" binding:"omitempty,min=0"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
}

type UpdateRequest struct {
	Name         *string          `json:"name"`
	DefaultUnits *int             `json:"default_units" binding:"omitempty,min=0"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
	IsActive     *bool            `json:"is_active"`
}
