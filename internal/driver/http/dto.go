package http

import (
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/driver"
)

type AvailableQuery struct {
	Date string `form:"date" binding:"required,calendar_day"`
}

type AvailableResponse struct {
	Date      calendar.Day `json:"date"`
	DriverIDs []string     `json:"driver_ids"`
}

type SetScheduleRequest struct {
	Dates  []calendar.Day `json:"dates" binding:"required,min=1,max=366"`
	Status string         `json:"status" binding:"required,oneof=available off"`
}

type ScheduleQuery struct {
	Start string `form:"start" binding:"required,calendar_day"`
	End   string `form:"end" binding:"required,calendar_day"`
}

func (q ScheduleQuery) Range() calendar.Range {
	return calendar.NewRange(calendar.MustParse(q.Start), calendar.MustParse(q.End))
}

type DayStatusResponse struct {
	Date          calendar.Day `json:"date"`
	Status        string       `json:"status"`
	ReservationID *string      `json:"reservation_id,omitempty"`
}

type ScheduleResponse struct {
	DriverID string              `json:"driver_id"`
	Days     []DayStatusResponse `json:"days"`
}

func NewScheduleResponse(driverID string, statuses []*driver.DayStatus) ScheduleResponse {
	days := make([]DayStatusResponse, len(statuses))
	for i, s := range statuses {
		days[i] = DayStatusResponse{Date: s.Day, Status: string(s.Status), ReservationID: s.ReservationID}
	}
	return ScheduleResponse{DriverID: driverID, Days: days}
}
