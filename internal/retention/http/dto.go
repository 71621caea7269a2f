package http

import (
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

type PurgeQuery struct {
	Before string `form:"before" binding:"omitempty,calendar_day"`
}

// BeforeDay returns nil when no cutoff was given.
func (q PurgeQuery) BeforeDay() *calendar.Day {
	if q.Before == "" {
		return nil
	}
	d := calendar.MustParse(q.Before)
	return &d
}

type PurgeResponse struct {
	Cutoff  calendar.Day `json:"cutoff"`
	Removed int64        `json:"removed"`
}
