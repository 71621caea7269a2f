package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
)

type ResourceURI struct {
	Kind string `uri:"kind" binding:"required,resource_kind"`
	ID   string `uri:"id" binding:"required,uuid"`
}

func (u ResourceURI) Key() capacity.Key {
	return capacity.Key{Kind: capacity.Kind(u.Kind), ResourceID: u.ID}
}

type DayURI struct {
	ResourceURI
	Date string `uri:"date" binding:"required,calendar_day"`
}

type InitRangeRequest struct {
	Start         calendar.Day     `json:"start" binding:"required"`
	End           *calendar.Day    `json:"end"`
	TotalUnits    *int             `json:"total_units" binding:"omitempty,min=0"`
	PriceOverride *decimal.Decimal `json:"price_override"`
}

type UpdateDayRequest struct {
	TotalUnits    *int             `json:"total_units" binding:"omitempty,min=0"`
	PriceOverride *decimal.Decimal `json:"price_override"`
}

type BatchUpdateRequest struct {
	Dates         []calendar.Day   `json:"dates" binding:"required,min=1,max=366"`
	TotalUnits    *int             `json:"total_units" binding:"omitempty,min=0"`
	PriceOverride *decimal.Decimal `json:"price_override"`
}

type RecordResponse struct {
	Date          calendar.Day     `json:"date"`
	TotalUnits    int              `json:"total_units"`
	BookedUnits   int              `json:"booked_units"`
	Available     int              `json:"available"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func NewRecordResponse(r *capacity.Record) RecordResponse {
	return RecordResponse{
		Date:          r.Day,
		TotalUnits:    r.TotalUnits,
		BookedUnits:   r.BookedUnits,
		Available:     r.Available(),
		PriceOverride: r.PriceOverride,
		UpdatedAt:     r.UpdatedAt,
	}
}

func NewRecordResponses(records []*capacity.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = NewRecordResponse(r)
	}
	return out
}

type InitRangeResponse struct {
	Range       calendar.Range `json:"range"`
	DaysUpdated int            `json:"days_updated"`
}
