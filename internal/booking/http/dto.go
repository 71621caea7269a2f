package http

import (
	"time"

	"github.com/staydrive/inventory-engine/internal/booking"
	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	Kind       string `form:"kind" binding:"omitempty,resource_kind"`
	ResourceID string `form:"resource_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=confirmed cancelled"`
	UserID     string `form:"user_id"`
}

type CreateBookingRequest struct {
	Kind       string  `json:"kind" binding:"required,resource_kind"`
	ResourceID string  `json:"resource_id" binding:"required,uuid"`
	Start      string  `json:"start" binding:"required,calendar_day"`
	End        string  `json:"end" binding:"required,calendar_day"`
	Units      *int    `json:"units" binding:"omitempty,min=1"`
	WithDriver bool    `json:"with_driver"`
	DriverID   *string `json:"driver_id" binding:"omitempty,uuid"`
}

// Validate performs custom validation for CreateBookingRequest.
func (r *CreateBookingRequest) Validate() error {
	return r.Range().Validate()
}

func (r *CreateBookingRequest) Range() calendar.Range {
	return calendar.NewRange(calendar.MustParse(r.Start), calendar.MustParse(r.End))
}

// UnitsOrDefault books one unit unless told otherwise.
func (r *CreateBookingRequest) UnitsOrDefault() int {
	if r.Units == nil {
		return 1
	}
	return *r.Units
}

type ResourceTag struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BookingResponse struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Resource      ResourceTag    `json:"resource"`
	Start         calendar.Day   `json:"start"`
	End           calendar.Day   `json:"end"`
	Nights        int            `json:"nights"`
	Units         int            `json:"units"`
	WithDriver    bool           `json:"with_driver"`
	DriverID      *string        `json:"driver_id,omitempty"`
	ReservationID string         `json:"reservation_id"`
	Status        booking.Status `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		Resource:      ResourceTag{Kind: string(b.Kind), ID: b.ResourceID, Name: b.ResourceName},
		Start:         b.Range.Start,
		End:           b.Range.End,
		Nights:        b.Range.Len(),
		Units:         b.Units,
		WithDriver:    b.WithDriver,
		DriverID:      b.DriverID,
		ReservationID: b.ReservationID,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
