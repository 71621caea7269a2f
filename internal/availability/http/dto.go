package http

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/staydrive/inventory-engine/internal/availability"
	"github.com/staydrive/inventory-engine/internal/calendar"
)

type ResourceURI struct {
	Kind string `uri:"kind" binding:"required,resource_kind"`
	ID   string `uri:"id" binding:"required,uuid"`
}

type KindURI struct {
	Kind string `uri:"kind" binding:"required,resource_kind"`
}

type RangeQuery struct {
	Start string `form:"start" binding:"required,calendar_day"`
	End   string `form:"end" binding:"required,calendar_day"`
}

// Range parses the already validated bounds.
func (q RangeQuery) Range() calendar.Range {
	return calendar.NewRange(calendar.MustParse(q.Start), calendar.MustParse(q.End))
}

type CalendarQuery struct {
	RangeQuery
	IDs string `form:"ids"`
}

// ResourceIDs splits the comma separated ids parameter.
func (q CalendarQuery) ResourceIDs() []string {
	var ids []string
	for _, id := range strings.Split(q.IDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type DayResponse struct {
	Date          calendar.Day     `json:"date"`
	Available     int              `json:"available"`
	TotalUnits    int              `json:"total_units"`
	Tier          string           `json:"tier"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
}

type RangeResponse struct {
	Kind       string         `json:"kind"`
	ResourceID string         `json:"resource_id"`
	Range      calendar.Range `json:"range"`
	Days       []DayResponse  `json:"days"`
}

func NewRangeResponse(kind, id string, rng calendar.Range, days []availability.DayAvailability) RangeResponse {
	items := make([]DayResponse, len(days))
	for i, d := range days {
		items[i] = DayResponse{
			Date:          d.Date,
			Available:     d.Available,
			TotalUnits:    d.TotalUnits,
			Tier:          string(d.Tier),
			PriceOverride: d.PriceOverride,
		}
	}
	return RangeResponse{Kind: kind, ResourceID: id, Range: rng, Days: items}
}

type AggregateResponse struct {
	Date      calendar.Day `json:"date"`
	Available int          `json:"available"`
	Capacity  int          `json:"capacity"`
	Ratio     float64      `json:"ratio"`
	Tier      string       `json:"tier"`
}

type CalendarResponse struct {
	Kind  string              `json:"kind"`
	Range calendar.Range      `json:"range"`
	Days  []AggregateResponse `json:"days"`
}

func NewCalendarResponse(kind string, rng calendar.Range, days []availability.Aggregate) CalendarResponse {
	items := make([]AggregateResponse, len(days))
	for i, d := range days {
		items[i] = AggregateResponse{
			Date:      d.Date,
			Available: d.Available,
			Capacity:  d.Capacity,
			Ratio:     d.Ratio,
			Tier:      string(d.Tier),
		}
	}
	return CalendarResponse{Kind: kind, Range: rng, Days: items}
}
